package repository

import (
	"context"

	"gorm.io/gorm"

	"clinic-chat-go/internal/model"
)

// PatientRepository 定义了患者数据的持久化操作，所有查询都限定在所属用户之内。
type PatientRepository interface {
	Create(ctx context.Context, patient *model.Patient) error
	// FindByOwner 仅当患者属于 ownerID 时返回，否则返回 gorm.ErrRecordNotFound。
	FindByOwner(ctx context.Context, ownerID, patientID uint) (*model.Patient, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]model.Patient, int64, error)
	Update(ctx context.Context, patient *model.Patient) error
	// DeleteByOwner 删除患者及其聊天记录，返回是否删除了患者。
	DeleteByOwner(ctx context.Context, ownerID, patientID uint) (bool, error)
}

type patientRepository struct {
	db *gorm.DB
}

// NewPatientRepository 创建一个新的 PatientRepository 实例。
func NewPatientRepository(db *gorm.DB) PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	return r.db.WithContext(ctx).Create(patient).Error
}

func (r *patientRepository) FindByOwner(ctx context.Context, ownerID, patientID uint) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", patientID, ownerID).
		First(&patient).Error
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

func (r *patientRepository) ListByOwner(ctx context.Context, ownerID uint) ([]model.Patient, int64, error) {
	var patients []model.Patient
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&patients).Error
	if err != nil {
		return nil, 0, err
	}
	return patients, int64(len(patients)), nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	return r.db.WithContext(ctx).Save(patient).Error
}

func (r *patientRepository) DeleteByOwner(ctx context.Context, ownerID, patientID uint) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", patientID, ownerID).Delete(&model.Patient{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("patient_id = ? AND user_id = ?", patientID, ownerID).Delete(&model.ChatMessage{}).Error
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
