package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"clinic-chat-go/internal/model"
	"clinic-chat-go/internal/repository"
)

// PatientInput 是创建或更新患者的请求体。字段为 nil 表示请求中未提供。
type PatientInput struct {
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	DOB          *string `json:"dob"`
	MedicalNotes *string `json:"medical_notes"`
}

// PatientList 是患者列表的返回值。
type PatientList struct {
	Rows  []model.Patient `json:"rows"`
	Total int64           `json:"total"`
}

// PatientService 定义了按所属用户隔离的患者 CRUD。
type PatientService interface {
	Create(ctx context.Context, ownerID uint, in PatientInput) (*model.Patient, error)
	Get(ctx context.Context, ownerID, patientID uint) (*model.Patient, error)
	List(ctx context.Context, ownerID uint) (*PatientList, error)
	Update(ctx context.Context, ownerID, patientID uint, in PatientInput) (*model.Patient, error)
	Delete(ctx context.Context, ownerID, patientID uint) error
}

type patientService struct {
	patientRepo repository.PatientRepository
}

// NewPatientService 创建一个新的 PatientService 实例。
func NewPatientService(patientRepo repository.PatientRepository) PatientService {
	return &patientService{patientRepo: patientRepo}
}

// optional 去除首尾空白，空串视为未填写。
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func parseDOB(s *string) (*model.Date, error) {
	v := optional(s)
	if v == nil {
		return nil, nil
	}
	d, err := model.ParseDate(*v)
	if err != nil {
		return nil, invalid("dob must be YYYY-MM-DD")
	}
	return &d, nil
}

func (s *patientService) Create(ctx context.Context, ownerID uint, in PatientInput) (*model.Patient, error) {
	name := optional(in.Name)
	if name == nil {
		return nil, invalid("Name is required")
	}
	dob, err := parseDOB(in.DOB)
	if err != nil {
		return nil, err
	}

	patient := &model.Patient{
		UserID:       ownerID,
		Name:         *name,
		Email:        optional(in.Email),
		Phone:        optional(in.Phone),
		DOB:          dob,
		MedicalNotes: optional(in.MedicalNotes),
	}
	if err := s.patientRepo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return patient, nil
}

func (s *patientService) Get(ctx context.Context, ownerID, patientID uint) (*model.Patient, error) {
	patient, err := s.patientRepo.FindByOwner(ctx, ownerID, patientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("find patient: %w", err)
	}
	return patient, nil
}

func (s *patientService) List(ctx context.Context, ownerID uint) (*PatientList, error) {
	rows, total, err := s.patientRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	if rows == nil {
		rows = []model.Patient{}
	}
	return &PatientList{Rows: rows, Total: total}, nil
}

// Update 只修改请求中提供的字段；可选字段提供空值时保留原值。
func (s *patientService) Update(ctx context.Context, ownerID, patientID uint, in PatientInput) (*model.Patient, error) {
	patient, err := s.Get(ctx, ownerID, patientID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := optional(in.Name)
		if name == nil {
			return nil, invalid("Name cannot be empty")
		}
		patient.Name = *name
	}
	if v := optional(in.Email); v != nil {
		patient.Email = v
	}
	if v := optional(in.Phone); v != nil {
		patient.Phone = v
	}
	if v := optional(in.MedicalNotes); v != nil {
		patient.MedicalNotes = v
	}
	dob, err := parseDOB(in.DOB)
	if err != nil {
		return nil, err
	}
	if dob != nil {
		patient.DOB = dob
	}

	if err := s.patientRepo.Update(ctx, patient); err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return patient, nil
}

func (s *patientService) Delete(ctx context.Context, ownerID, patientID uint) error {
	deleted, err := s.patientRepo.DeleteByOwner(ctx, ownerID, patientID)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if !deleted {
		return ErrPatientNotFound
	}
	return nil
}
