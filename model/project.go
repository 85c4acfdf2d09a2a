package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Project 工程的可持久化快照，只包含数据模型，不包含预览任务等瞬时状态
type Project struct {
	ID                 string       `json:"id" yaml:"id"`
	Name               string       `json:"name" yaml:"name"`
	ConfiguredDuration float64      `json:"configuredDuration" yaml:"configuredDuration"`
	Zoom               float64      `json:"zoom" yaml:"zoom"`
	CurrentTime        float64      `json:"currentTime" yaml:"currentTime"`
	Tracks             []*Track     `json:"tracks" yaml:"tracks"`
	Links              []TrackLink  `json:"links" yaml:"links"`
	Markers            []Marker     `json:"markers" yaml:"markers"`
	Keyframes          []Keyframe   `json:"keyframes" yaml:"keyframes"`
	Mixer              []MixerEntry `json:"mixer" yaml:"mixer"`
	Master             MasterBus    `json:"master" yaml:"master"`
}

// ProjectDocument 用于 GORM JSON 字段的自动扫描
type ProjectDocument Project

// Scan 实现 sql.Scanner 接口
func (d *ProjectDocument) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		*d = ProjectDocument{}
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported project document type %T", value)
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*d = ProjectDocument{}
		return nil
	}
	return json.Unmarshal(bytes, d)
}

// Value 实现 driver.Valuer 接口
func (d ProjectDocument) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// ProjectRecord 工程表
type ProjectRecord struct {
	ID        string          `json:"id" gorm:"primaryKey;size:36"`
	Name      string          `json:"name" gorm:"size:200;not null"`
	Document  ProjectDocument `json:"document" gorm:"type:json"`
	Revision  int64           `json:"revision" gorm:"not null;default:0"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// TableName 指定表名
func (ProjectRecord) TableName() string {
	return "projects"
}
