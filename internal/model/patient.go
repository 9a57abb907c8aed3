package model

import "time"

// Patient 对应 patients 表，归属于单个用户。可选字段为 NULL 时以 nil 表示。
type Patient struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Email        *string   `gorm:"type:varchar(255)" json:"email"`
	Phone        *string   `gorm:"type:varchar(50)" json:"phone"`
	DOB          *Date     `gorm:"column:dob;type:date" json:"dob"`
	MedicalNotes *string   `gorm:"type:text" json:"medical_notes"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Patient) TableName() string {
	return "patients"
}

// NotesOrEmpty 返回病历备注，NULL 时为空字符串。
func (p *Patient) NotesOrEmpty() string {
	if p.MedicalNotes == nil {
		return ""
	}
	return *p.MedicalNotes
}
