package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

type StrokeTool string

const (
	ToolPen    StrokeTool = "pen"
	ToolEraser StrokeTool = "eraser"
)

const (
	MinStrokeWidth     = 1
	MaxStrokeWidth     = 100
	MaxPointsPerStroke = 5000
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Point is one sampled pointer position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one pen or eraser gesture. It grows while Completed is false
// and is immutable afterwards.
type Stroke struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	RoomID    uint       `gorm:"index:idx_strokes_room_created;not null" json:"room_id"`
	AuthorID  uint       `gorm:"not null" json:"author_id"`
	Tool      StrokeTool `gorm:"size:16;not null" json:"tool"`
	Color     string     `gorm:"size:7;not null" json:"color"`
	Width     int        `gorm:"not null" json:"width"`
	Points    string     `gorm:"type:longtext;not null" json:"-"` // JSON array of Point
	Completed bool       `gorm:"not null;default:false" json:"completed"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index:idx_strokes_room_created" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime;index" json:"updated_at"`
}

// ParsePoints decodes the stored point list.
func (s *Stroke) ParsePoints() ([]Point, error) {
	if s.Points == "" || s.Points == "null" {
		return []Point{}, nil
	}
	var pts []Point
	if err := json.Unmarshal([]byte(s.Points), &pts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stroke points: %w", err)
	}
	return pts, nil
}

// SetPoints encodes pts into the Points column.
func (s *Stroke) SetPoints(pts []Point) error {
	if pts == nil {
		pts = []Point{}
	}
	b, err := json.Marshal(pts)
	if err != nil {
		return fmt.Errorf("failed to marshal stroke points: %w", err)
	}
	s.Points = string(b)
	return nil
}

// StrokeView is a stroke with its points decoded, as sent to clients.
type StrokeView struct {
	Stroke
	PointList []Point `json:"points"`
}

// ValidTool reports whether t is a known drawing tool.
func ValidTool(t StrokeTool) bool { return t == ToolPen || t == ToolEraser }

// ValidColor reports whether c is a #RRGGBB color.
func ValidColor(c string) bool { return colorPattern.MatchString(c) }
