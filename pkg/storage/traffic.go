package storage

import (
	"go-sysmonitor/pkg/models"
)

var trafficHeader = []string{"Type", "Local Address", "Remote Address"}

// TrafficRow 流量日志中的一行
type TrafficRow struct {
	Protocol string
	Local    string
	Remote   string
}

// TrafficLog 只追加的连接流量日志
type TrafficLog struct {
	path string
}

func NewTrafficLog(path string) *TrafficLog {
	return &TrafficLog{path: path}
}

func (t *TrafficLog) Path() string { return t.path }

// Append 每条连接写一行
func (t *TrafficLog) Append(records []models.ConnectionRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{string(r.Protocol), r.Local.String(), r.RemoteString()})
	}
	return appendRows(t.path, trafficHeader, rows)
}

func (t *TrafficLog) Load() ([]TrafficRow, error) {
	rows, err := readRows(t.path, trafficHeader)
	if err != nil {
		return nil, err
	}
	out := make([]TrafficRow, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		out = append(out, TrafficRow{Protocol: row[0], Local: row[1], Remote: row[2]})
	}
	return out, nil
}
