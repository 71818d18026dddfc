// Package optioncodes 把多份选配代码表按顺序叠加为一个解析字典
package optioncodes

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/langchou/ordergazer/internal/models"
)

// UnknownDescription 未收录代码的占位描述
const UnknownDescription = "Unknown option code"

// Overlay 合并后的选配代码字典
type Overlay struct {
	codes map[string]string
}

// Load 按给定顺序加载 JSON 代码表并合并，同一代码后加载的表整体覆盖先前的值
// 顺序由调用方确定，结果与目录遍历顺序无关
func Load(paths []string) (*Overlay, error) {
	merged := make(map[string]string)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read option table %s: %w", path, err)
		}
		var table map[string]string
		if err := json.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("parse option table %s: %w", path, err)
		}
		for code, desc := range table {
			merged[code] = desc
		}
	}
	return &Overlay{codes: merged}, nil
}

// LoadDir 加载目录下所有 .json 代码表，按文件名字典序作为叠加顺序
func LoadDir(dir string) (*Overlay, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read option codes dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return Load(paths)
}

// Resolve 查询单个代码的描述
func (o *Overlay) Resolve(code string) (string, bool) {
	desc, ok := o.codes[code]
	return desc, ok
}

// Len 已收录的代码数
func (o *Overlay) Len() int {
	return len(o.codes)
}

// Decode 解析逗号分隔的原始选配串，按代码排序返回
func (o *Overlay) Decode(optionString string) []models.DecodedOption {
	var codes []string
	for _, c := range strings.Split(optionString, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	sort.Strings(codes)

	var decoded []models.DecodedOption
	for _, code := range codes {
		desc, ok := o.codes[code]
		if !ok {
			desc = UnknownDescription
		}
		decoded = append(decoded, models.DecodedOption{
			Code:        code,
			Description: desc,
			Known:       ok,
		})
	}
	return decoded
}
