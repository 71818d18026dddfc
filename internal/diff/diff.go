// Package diff 实现订单快照之间的字段级差异检测
package diff

import (
	"sort"
	"strconv"

	"github.com/langchou/ordergazer/internal/models"
)

// Flatten 把嵌套文档扁平化为 字段路径 -> 标量值 的映射
// 嵌套对象用点号拼接路径，数组按下标定位（如 tasks.scheduling.0.date）
func Flatten(doc map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range doc {
		flattenInto(out, k, v)
	}
	return out
}

func flattenInto(out map[string]any, path string, v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			flattenInto(out, path+"."+k, val)
		}
	case []any:
		for i, val := range t {
			flattenInto(out, path+"."+strconv.Itoa(i), val)
		}
	default:
		out[path] = t
	}
}

// Diff 比较前后两份快照，返回按字段路径字典序排序的变更记录
// previous 为 nil（首次拉取）时不产生任何记录：第一份快照只是基线
func Diff(previous, current *models.OrderSnapshot) []models.ChangeRecord {
	if previous == nil {
		return nil
	}

	paths := make(map[string]struct{}, len(previous.Fields)+len(current.Fields))
	for p := range previous.Fields {
		paths[p] = struct{}{}
	}
	for p := range current.Fields {
		paths[p] = struct{}{}
	}

	var records []models.ChangeRecord
	for path := range paths {
		oldVal, oldOK := previous.Fields[path]
		newVal, newOK := current.Fields[path]
		if oldOK && newOK && equalValues(oldVal, newVal) {
			continue
		}
		rec := models.ChangeRecord{
			FieldPath:  path,
			DetectedAt: current.CapturedAt,
		}
		if oldOK {
			rec.OldValue = encode(oldVal)
		}
		if newOK {
			rec.NewValue = encode(newVal)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].FieldPath < records[j].FieldPath
	})
	return records
}

// equalValues 结构化相等比较
// 仅当两侧类型不同且其中一侧是数字时做数字归一化（"5" 与 5 相等），
// 两侧都是字符串时按字面比较（"0123" 与 "123" 是不同的值）；
// null 与空串视为不同
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	fa, aNum := asNumber(a)
	fb, bNum := asNumber(b)
	switch {
	case aNum && bNum:
		return fa == fb
	case aNum:
		f, ok := parseNumber(b)
		return ok && fa == f
	case bNum:
		f, ok := parseNumber(a)
		return ok && fb == f
	}

	switch ta := a.(type) {
	case string:
		tb, ok := b.(string)
		return ok && ta == tb
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb
	default:
		return scalarString(a) == scalarString(b)
	}
}

// asNumber 判断值本身是否是数字
func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// parseNumber 尝试把字符串解析为数字，供与数字侧比较
func parseNumber(v any) (float64, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

// encode 把标量值编码为记录里的字符串；JSON null 表示为 "null"
func encode(v any) *string {
	s := scalarString(v)
	return &s
}
