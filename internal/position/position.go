// Package position 计算兄弟集合 (看板内的列表、列表内的任务) 的位置调整。
//
// 每个集合中的 position 必须始终是 0..n-1 的连续整数。这里的函数只负责
// 根据一次插入、移动或删除算出需要整体平移的区间，不接触存储；
// 调用方在同一事务中把每个 Shift 作为一条范围 UPDATE 执行。
package position

import "errors"

// ErrInvalidPosition 表示请求的位置为负数
var ErrInvalidPosition = errors.New("position: invalid position")

// Unbounded 作为 Shift.To 时表示区间没有上界
const Unbounded = -1

// Shift 描述一次范围平移：Scope 内 position 落在 [From, To] 的兄弟 (排除 ExcludeID) 加上 Delta。
type Shift struct {
	Scope     string
	From      int
	To        int
	Delta     int
	ExcludeID string
}

// Covers 判断某个位置是否落在平移区间内
func (s Shift) Covers(pos int) bool {
	if pos < s.From {
		return false
	}
	return s.To == Unbounded || pos <= s.To
}

// Plan 是一次操作的执行计划。Target 是实体最终落点 (已按集合大小夹紧)。
type Plan struct {
	Target int
	Shifts []Shift
}

// Noop 判断计划是否不需要任何写入
func (p Plan) Noop() bool {
	return len(p.Shifts) == 0
}

// Insert 计算在 count 个兄弟中插入新实体的计划。
// requested 为 nil 时追加到末尾；否则夹紧到 [0, count]。
func Insert(scope string, count int, requested *int) (Plan, error) {
	target := count
	if requested != nil {
		if *requested < 0 {
			return Plan{}, ErrInvalidPosition
		}
		target = clamp(*requested, 0, count)
	}
	if target == count {
		return Plan{Target: target}, nil
	}
	return Plan{
		Target: target,
		Shifts: []Shift{{Scope: scope, From: target, To: Unbounded, Delta: 1}},
	}, nil
}

// Move 计算在同一集合内把实体从 current 移到 requested 的计划。
// requested 夹紧到 [0, count-1]；位置不变时返回空计划。
func Move(scope, id string, count, current, requested int) (Plan, error) {
	if requested < 0 || current < 0 {
		return Plan{}, ErrInvalidPosition
	}
	target := clamp(requested, 0, count-1)
	switch {
	case target < current:
		// 目标在前：[target, current) 整体后移
		return Plan{Target: target, Shifts: []Shift{
			{Scope: scope, From: target, To: current - 1, Delta: 1, ExcludeID: id},
		}}, nil
	case target > current:
		// 目标在后：(current, target] 整体前移
		return Plan{Target: target, Shifts: []Shift{
			{Scope: scope, From: current + 1, To: target, Delta: -1, ExcludeID: id},
		}}, nil
	default:
		return Plan{Target: current}, nil
	}
}

// MoveAcross 计算把实体从 from 集合的 current 位置移到 to 集合的计划。
// requested 为 nil 时追加到目标集合末尾；否则夹紧到 [0, destCount]。
// 两个平移必须和实体的重新挂载在同一事务中执行。
func MoveAcross(from, to, id string, current, destCount int, requested *int) (Plan, error) {
	if current < 0 {
		return Plan{}, ErrInvalidPosition
	}
	target := destCount
	if requested != nil {
		if *requested < 0 {
			return Plan{}, ErrInvalidPosition
		}
		target = clamp(*requested, 0, destCount)
	}
	shifts := []Shift{
		// 源集合中原位置之后的兄弟前移补位
		{Scope: from, From: current + 1, To: Unbounded, Delta: -1, ExcludeID: id},
	}
	if target < destCount {
		shifts = append(shifts, Shift{Scope: to, From: target, To: Unbounded, Delta: 1, ExcludeID: id})
	}
	return Plan{Target: target, Shifts: shifts}, nil
}

// Delete 计算删除 current 位置实体后剩余兄弟的补位计划。
func Delete(scope, id string, current int) Plan {
	return Plan{
		Target: current,
		Shifts: []Shift{{Scope: scope, From: current + 1, To: Unbounded, Delta: -1, ExcludeID: id}},
	}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
