package storage

import (
	"context"
	"database/sql"
	"time"

	"go-sysmonitor/pkg/config"
	"go-sysmonitor/pkg/logger"
	"go-sysmonitor/pkg/models"

	_ "github.com/go-sql-driver/mysql"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/multierr"
)

const writeTimeout = 5 * time.Second

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Storage 可选的外部存储：主机快照写入 InfluxDB，信誉结果镜像到 MySQL
// 未配置的后端直接跳过
type Storage struct {
	influxClient influxdb2.Client
	writeAPI     pointWriter
	mysqlDB      *sql.DB
	now          func() time.Time
}

func NewStorage(cfg *config.Config) (*Storage, error) {
	s := &Storage{now: time.Now}

	if cfg.InfluxDB.URL != "" {
		s.influxClient = influxdb2.NewClient(cfg.InfluxDB.URL, cfg.InfluxDB.Token)
		s.writeAPI = s.influxClient.WriteAPIBlocking(cfg.InfluxDB.Org, cfg.InfluxDB.Bucket)
		logger.Log.Infof("InfluxDB 已启用: url=%s, bucket=%s", cfg.InfluxDB.URL, cfg.InfluxDB.Bucket)
	}

	if cfg.MySQL.DSN != "" {
		mysqlDB, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			s.Close()
			return nil, err
		}
		mysqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdle)
		mysqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpen)
		if err := migrate(mysqlDB); err != nil {
			mysqlDB.Close()
			s.Close()
			return nil, err
		}
		s.mysqlDB = mysqlDB
		logger.Log.Info("MySQL 已启用")
	}

	return s, nil
}

// Enabled 至少配置了一个后端
func (s *Storage) Enabled() bool {
	return s.writeAPI != nil || s.mysqlDB != nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS reputation_results (
            id BIGINT AUTO_INCREMENT PRIMARY KEY,
            ip_address VARCHAR(45) NOT NULL,
            is_whitelisted BOOLEAN NOT NULL,
            confidence_score INT NULL,
            country VARCHAR(128) NOT NULL,
            created_at DATETIME NOT NULL,
            UNIQUE KEY uniq_ip (ip_address)
        )
    `)
	return err
}

// OnMetrics 保存主机快照到 InfluxDB
func (s *Storage) OnMetrics(snap models.MetricsSnapshot) {
	if s.writeAPI == nil {
		return
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	p := influxdb2.NewPoint(
		"host_metrics",
		map[string]string{},
		map[string]interface{}{
			"cpu_percent":    snap.CPUPercent,
			"ram_percent":    snap.RAMPercent,
			"disk_percent":   snap.DiskPercent,
			"net_send_kbps":  snap.NetSendKbps,
			"net_recv_kbps":  snap.NetRecvKbps,
			"physical_cores": snap.PhysicalCores,
			"logical_cores":  snap.LogicalCores,
		},
		ts,
	)
	s.writePoints(p)
}

// OnConnections 按协议统计连接数写入 InfluxDB
func (s *Storage) OnConnections(records []models.ConnectionRecord) {
	if s.writeAPI == nil {
		return
	}
	counts := map[models.Protocol]int{models.ProtocolTCP: 0, models.ProtocolUDP: 0}
	for _, r := range records {
		counts[r.Protocol]++
	}
	now := s.now()
	points := make([]*write.Point, 0, len(counts))
	for proto, n := range counts {
		points = append(points, influxdb2.NewPoint(
			"connections",
			map[string]string{"protocol": string(proto)},
			map[string]interface{}{"count": n},
			now,
		))
	}
	s.writePoints(points...)
}

func (s *Storage) writePoints(points ...*write.Point) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		logger.Log.Errorf("写入 InfluxDB 失败: %v", err)
	}
}

// OnReputationResult 镜像信誉结果到 MySQL
func (s *Storage) OnReputationResult(ip string, whitelisted bool, score *int, country string) {
	if s.mysqlDB == nil {
		return
	}
	query := `
        INSERT IGNORE INTO reputation_results (
            ip_address, is_whitelisted, confidence_score, country, created_at
        ) VALUES (?, ?, ?, ?, ?)
    `
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if _, err := s.mysqlDB.ExecContext(ctx, query, ip, whitelisted, score, country, s.now().UTC()); err != nil {
		logger.Log.Errorf("保存信誉结果失败: ip=%s, error=%v", ip, err)
	}
}

func (s *Storage) Close() error {
	var err error
	if s.influxClient != nil {
		s.influxClient.Close()
	}
	if s.mysqlDB != nil {
		err = multierr.Append(err, s.mysqlDB.Close())
	}
	return err
}
