package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 订单生命周期状态常量
const (
	StateBooked            = "booked"
	StateVinAssigned       = "vin_assigned"
	StateDeliveryScheduled = "delivery_scheduled"
	StateDelivered         = "delivered"
)

// 事件常量
const (
	EventAssignVin        = "assign_vin"
	EventScheduleDelivery = "schedule_delivery"
	EventCompleteDelivery = "complete_delivery"
)

// Transition 一次状态迁移
type Transition struct {
	OrderRef string    `json:"order_ref"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	At       time.Time `json:"at"`
}

// Machine 单个订单的生命周期状态机
type Machine struct {
	mu       sync.RWMutex
	orderRef string
	fsm      *fsm.FSM
	since    time.Time

	onTransition func(t Transition)
}

// NewMachine 创建状态机
func NewMachine(orderRef, initialState string, onTransition func(t Transition)) *Machine {
	if initialState == "" {
		initialState = StateBooked
	}

	m := &Machine{
		orderRef:     orderRef,
		since:        time.Now(),
		onTransition: onTransition,
	}

	m.fsm = fsm.NewFSM(
		initialState,
		fsm.Events{
			{Name: EventAssignVin, Src: []string{StateBooked}, Dst: StateVinAssigned},
			{Name: EventScheduleDelivery, Src: []string{StateBooked, StateVinAssigned}, Dst: StateDeliveryScheduled},
			{Name: EventCompleteDelivery, Src: []string{StateVinAssigned, StateDeliveryScheduled}, Dst: StateDelivered},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onTransition != nil && e.Src != e.Dst {
					m.onTransition(Transition{
						OrderRef: m.orderRef,
						From:     e.Src,
						To:       e.Dst,
						At:       time.Now(),
					})
				}
			},
		},
	)

	return m
}

// CurrentState 获取当前状态
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// Trigger 触发事件
func (m *Machine) Trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}
	m.since = time.Now()
	return nil
}

// CanTransition 检查事件当前是否可触发
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}

// AdvanceTo 把状态机推进到目标状态，途经的事件依次触发
// 目标落后于当前状态时不回退（交付流程只前进）
func (m *Machine) AdvanceTo(target string) error {
	for m.CurrentState() != target {
		event, ok := nextEvent(m.CurrentState(), target)
		if !ok {
			return nil
		}
		if err := m.Trigger(event); err != nil {
			return err
		}
	}
	return nil
}

// nextEvent 从 current 向 target 推进时下一个要触发的事件
func nextEvent(current, target string) (string, bool) {
	switch current {
	case StateBooked:
		switch target {
		case StateVinAssigned, StateDelivered:
			return EventAssignVin, true
		case StateDeliveryScheduled:
			return EventScheduleDelivery, true
		}
	case StateVinAssigned:
		switch target {
		case StateDeliveryScheduled:
			return EventScheduleDelivery, true
		case StateDelivered:
			return EventCompleteDelivery, true
		}
	case StateDeliveryScheduled:
		if target == StateDelivered {
			return EventCompleteDelivery, true
		}
	}
	return "", false
}

// Derive 从扁平化快照推导订单应处的生命周期状态
func Derive(fields map[string]any) string {
	status, _ := fields["order.orderStatus"].(string)
	if status == "DELIVERED" {
		return StateDelivered
	}

	if appt, ok := fields["details.tasks.scheduling.deliveryAppointmentDate"].(string); ok && appt != "" {
		return StateDeliveryScheduled
	}

	if vin, ok := fields["order.vin"].(string); ok && vin != "" {
		return StateVinAssigned
	}

	return StateBooked
}

// Manager 状态机管理器，按订单参考号索引
type Manager struct {
	mu           sync.RWMutex
	machines     map[string]*Machine
	onTransition func(t Transition)
}

// NewManager 创建管理器
func NewManager(onTransition func(t Transition)) *Manager {
	return &Manager{
		machines:     make(map[string]*Machine),
		onTransition: onTransition,
	}
}

// GetOrCreate 获取或创建某订单的状态机
func (m *Manager) GetOrCreate(orderRef, initialState string) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if machine, ok := m.machines[orderRef]; ok {
		return machine
	}

	machine := NewMachine(orderRef, initialState, m.onTransition)
	m.machines[orderRef] = machine
	return machine
}

// Remove 移除某订单的状态机（订单不再被跟踪时）
func (m *Manager) Remove(orderRef string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.machines, orderRef)
}

// States 所有订单的当前生命周期状态
func (m *Manager) States() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]string, len(m.machines))
	for ref, machine := range m.machines {
		states[ref] = machine.CurrentState()
	}
	return states
}
