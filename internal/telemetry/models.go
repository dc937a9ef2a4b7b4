// Package telemetry records one row per drive session and one row per
// simulator tick: the applied command, the vehicle pose and its geotag.
// Writes happen on a background goroutine fed through a bounded queue so
// the drive loop never waits on the database.
package telemetry

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists every struct migrated as a table.
var DatabaseModels = []interface{}{
	&DriveSession{},
	&TickRecord{},
}

// DriveSession is one operator session from spawn to teardown.
type DriveSession struct {
	gorm.Model
	MapName        string         `json:"mapName" gorm:"size:127"`
	Blueprint      string         `json:"blueprint" gorm:"size:127"`
	BlueprintAttrs datatypes.JSON `json:"blueprintAttrs"`
	Host           string         `json:"host" gorm:"size:127"`
	Port           int            `json:"port"`
	FixedDelta     float64        `json:"fixedDelta"`
	StartTime      time.Time      `json:"startTime" gorm:"index:idx_drivesession_start"`
	EndTime        *time.Time     `json:"endTime"`
	ExitReason     string         `json:"exitReason" gorm:"size:32"`
	// PathWKT is the session's vehicle trace as a 3857 LINESTRING, written
	// at teardown.
	PathWKT string `json:"pathWkt"`
}

// TickRecord is the command and resulting pose of one synchronous step.
type TickRecord struct {
	ID        uint         `json:"id" gorm:"primarykey"`
	SessionID uint         `json:"sessionId" gorm:"index:idx_tickrecord_session_id"`
	Session   DriveSession `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Frame     uint64       `json:"frame" gorm:"index:idx_tickrecord_frame"`
	Time      time.Time    `json:"time"`

	Throttle  float64 `json:"throttle"`
	Steer     float64 `json:"steer"`
	Brake     float64 `json:"brake"`
	Handbrake bool    `json:"handBrake"`
	Reverse   bool    `json:"reverse"`

	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`

	SpeedMps  float64 `json:"speedMps"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	// GeoWKT is the pose as a 3857 POINT Z.
	GeoWKT string `json:"geoWkt" gorm:"size:255"`
}
