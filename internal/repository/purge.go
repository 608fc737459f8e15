package repository

import (
	"context"
	"time"

	"leadflow/internal/models"

	"gorm.io/gorm"
)

// PurgeCounts 每类实体物理删除的行数
type PurgeCounts struct {
	Leads     int64 `json:"leads"`
	Workflows int64 `json:"workflows"`
	Documents int64 `json:"documents"`
}

// Total 合计
func (c PurgeCounts) Total() int64 {
	return c.Leads + c.Workflows + c.Documents
}

// PurgeDeleted 物理删除本租户中软删除时间早于 olderThan 的数据。
// 没有符合条件的行时不执行任何写操作。
func (r *Repository) PurgeDeleted(ctx context.Context, olderThan time.Duration) (PurgeCounts, error) {
	var counts PurgeCounts
	if err := r.scope.Require(models.PermOrgManage); err != nil {
		return counts, err
	}
	cutoff := r.now().Add(-olderThan)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		leadIDs, err := r.expiredIDs(tx, &models.Lead{}, cutoff)
		if err != nil {
			return err
		}
		if len(leadIDs) > 0 {
			childWorkflows, err := deleteLeadChildren(tx, r.scope.TenantID, leadIDs)
			if err != nil {
				return err
			}
			counts.Workflows = childWorkflows
			result := r.scopedTx(tx).Where("id IN ?", leadIDs).Delete(&models.Lead{})
			if result.Error != nil {
				return result.Error
			}
			counts.Leads = result.RowsAffected
		}

		// 随线索删除的工作流已不在此列，不会重复计数
		workflowIDs, err := r.expiredIDs(tx, &models.Workflow{}, cutoff)
		if err != nil {
			return err
		}
		if len(workflowIDs) > 0 {
			result := r.scopedTx(tx).Where("id IN ?", workflowIDs).Delete(&models.Workflow{})
			if result.Error != nil {
				return result.Error
			}
			counts.Workflows += result.RowsAffected
		}

		docIDs, err := r.expiredIDs(tx, &models.KnowledgeDocument{}, cutoff)
		if err != nil {
			return err
		}
		if len(docIDs) > 0 {
			result := r.scopedTx(tx).Where("id IN ?", docIDs).Delete(&models.KnowledgeDocument{})
			if result.Error != nil {
				return result.Error
			}
			counts.Documents = result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return PurgeCounts{}, err
	}
	return counts, nil
}

func (r *Repository) expiredIDs(tx *gorm.DB, model interface{}, cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.scopedTx(tx).Model(model).
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Pluck("id", &ids).Error
	return ids, err
}
