package gormpersistence

import (
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"collaborative-kanban/internal/position"
)

// positionTable 描述一个带位置列的兄弟集合表
type positionTable struct {
	model    interface{} // &domain.List{} 或 &domain.Task{}
	scopeCol string      // "board_id" 或 "list_id"
}

// applyPlan 在事务 tx 中执行位置计划。
//
// (scope, position) 上有唯一索引，逐行平移会中途撞索引，所以分两段执行：
//  1. 停放：把每个平移区间整体移到负数区，position = -(position + delta) - 1
//  2. 执行主写入 (插入、更新或删除实体本身)
//  3. 落位：对涉及的每个集合执行 position = -position - 1
//
// 每一段都是单条范围 UPDATE。任一步失败都会使整个事务回滚。
func applyPlan(tx *gorm.DB, t positionTable, plan position.Plan, primary func(tx *gorm.DB) error) error {
	for _, s := range plan.Shifts {
		q := tx.Model(t.model).Where(t.scopeCol+" = ? AND position >= ?", s.Scope, s.From)
		if s.To != position.Unbounded {
			q = q.Where("position <= ?", s.To)
		}
		if s.ExcludeID != "" {
			q = q.Where("id <> ?", s.ExcludeID)
		}
		if err := q.UpdateColumn("position", gorm.Expr("-(position + ?) - 1", s.Delta)).Error; err != nil {
			return fmt.Errorf("gorm: park positions in %s %s: %w", t.scopeCol, s.Scope, err)
		}
	}

	if primary != nil {
		if err := primary(tx); err != nil {
			return err
		}
	}

	for _, scope := range shiftScopes(plan.Shifts) {
		err := tx.Model(t.model).
			Where(t.scopeCol+" = ? AND position < 0", scope).
			UpdateColumn("position", gorm.Expr("-position - 1")).Error
		if err != nil {
			return fmt.Errorf("gorm: settle positions in %s %s: %w", t.scopeCol, scope, err)
		}
	}
	return nil
}

// shiftScopes 按首次出现顺序返回涉及的集合
func shiftScopes(shifts []position.Shift) []string {
	seen := make(map[string]bool, len(shifts))
	scopes := make([]string, 0, len(shifts))
	for _, s := range shifts {
		if !seen[s.Scope] {
			seen[s.Scope] = true
			scopes = append(scopes, s.Scope)
		}
	}
	return scopes
}

// lockRows 以 SELECT ... FOR UPDATE 按 ID 升序锁定父记录，串行化同一集合上的位置重算。
// SQLite 驱动会忽略锁子句 (整个库在写事务中本就串行)。
func lockRows(tx *gorm.DB, model interface{}, ids ...string) error {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		var locked struct{ ID string }
		err := tx.Model(model).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", id).
			Take(&locked).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// countIn 统计集合中的兄弟数量
func countIn(tx *gorm.DB, t positionTable, scope string) (int, error) {
	var n int64
	if err := tx.Model(t.model).Where(t.scopeCol+" = ?", scope).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("gorm: count siblings in %s %s: %w", t.scopeCol, scope, err)
	}
	return int(n), nil
}
