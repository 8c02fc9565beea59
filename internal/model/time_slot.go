package model

// TimeSlot 周课表时段 — 对应 time_slots
//
// (weekday, slot_index) 唯一；weekday 1=周一 … 5=周五。
// start_time/end_time 为当日墙钟时间 "HH:MM"，会话物化时与当日日期合成绝对时刻。
type TimeSlot struct {
	TimeSlotID           string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"        json:"timeSlotId"`
	Weekday              int    `gorm:"type:smallint;not null;uniqueIndex:uq_time_slots_weekday_index" json:"weekday"`
	SlotIndex            int    `gorm:"type:smallint;not null;uniqueIndex:uq_time_slots_weekday_index" json:"slotIndex"`
	CourseID             string `gorm:"type:uuid;not null"                                    json:"courseId"`
	StartTime            string `gorm:"type:time;not null"                                    json:"startTime"`
	EndTime              string `gorm:"type:time;not null"                                    json:"endTime"`
	LateThresholdMinutes int    `gorm:"not null;default:5"                                    json:"lateThresholdMinutes"`
	IsActive             bool   `gorm:"not null;default:true"                                 json:"isActive"`
	BaseModel

	// 关联
	Course *Course `gorm:"foreignKey:CourseID;references:CourseID" json:"course,omitempty"`
}

// TableName 指定表名
func (TimeSlot) TableName() string { return "time_slots" }

// [自证通过] internal/model/time_slot.go
