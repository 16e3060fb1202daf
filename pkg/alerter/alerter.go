package alerter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/multierr"

	"go-sysmonitor/pkg/config"
	"go-sysmonitor/pkg/logger"
	"go-sysmonitor/pkg/models"
)

// Alert 恶意地址告警内容
type Alert struct {
	Timestamp   time.Time `json:"timestamp"`
	IP          string    `json:"ip"`
	Whitelisted bool      `json:"is_whitelisted"`
	Score       int       `json:"abuse_confidence_score"`
	Country     string    `json:"country"`
}

// Alerter 告警处理器，对超过阈值的信誉结果发送 Webhook 通知并写入 Kafka
type Alerter struct {
	webhookURL string
	client     *http.Client
	producer   sarama.SyncProducer
	topic      string
	threshold  int
	now        func() time.Time
}

// NewAlerter 创建告警处理器，未配置的通道不启用
func NewAlerter(cfg *config.Config) (*Alerter, error) {
	var producer sarama.SyncProducer
	if len(cfg.Kafka.Brokers) > 0 {
		kc := sarama.NewConfig()
		version, err := sarama.ParseKafkaVersion("2.1.0")
		if err != nil {
			return nil, err
		}
		kc.Version = version
		kc.Producer.RequiredAcks = sarama.WaitForLocal
		kc.Producer.Return.Successes = true
		kc.Producer.Retry.Max = 3
		kc.Net.DialTimeout = 30 * time.Second
		kc.Net.ReadTimeout = 30 * time.Second
		kc.Net.WriteTimeout = 30 * time.Second

		logger.Log.Infof("正在连接 Kafka brokers: %v", cfg.Kafka.Brokers)
		producer, err = sarama.NewSyncProducer(cfg.Kafka.Brokers, kc)
		if err != nil {
			return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
		}
	}
	return newAlerter(cfg.Webhook.URL, producer, cfg.Kafka.Topic, cfg.Reputation.Threshold), nil
}

func newAlerter(webhookURL string, producer sarama.SyncProducer, topic string, threshold int) *Alerter {
	return &Alerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		producer:   producer,
		topic:      topic,
		threshold:  threshold,
		now:        time.Now,
	}
}

// Enabled 至少配置了一个告警通道
func (a *Alerter) Enabled() bool {
	return a.webhookURL != "" || a.producer != nil
}

func (a *Alerter) OnMetrics(models.MetricsSnapshot) {}

func (a *Alerter) OnConnections([]models.ConnectionRecord) {}

// OnReputationResult 分数严格大于阈值时触发告警
func (a *Alerter) OnReputationResult(ip string, whitelisted bool, score *int, country string) {
	if score == nil || *score <= a.threshold {
		return
	}
	alert := Alert{
		Timestamp:   a.now(),
		IP:          ip,
		Whitelisted: whitelisted,
		Score:       *score,
		Country:     country,
	}
	if err := a.TriggerAlert(alert); err != nil {
		logger.Log.Errorf("发送告警失败: ip=%s, error=%v", ip, err)
		return
	}
	logger.Log.Infof("成功触发告警: ip=%s, 分数=%d", ip, *score)
}

// TriggerAlert 依次发送到各个已启用的通道，返回合并后的错误
func (a *Alerter) TriggerAlert(alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	var errs error
	if a.webhookURL != "" {
		errs = multierr.Append(errs, a.sendWebhook(payload))
	}
	if a.producer != nil {
		_, _, err := a.producer.SendMessage(&sarama.ProducerMessage{
			Topic: a.topic,
			Key:   sarama.StringEncoder(alert.IP),
			Value: sarama.ByteEncoder(payload),
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("写入Kafka失败: %w", err))
		}
	}
	return errs
}

func (a *Alerter) sendWebhook(payload []byte) error {
	resp, err := a.client.Post(a.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("Webhook请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("Webhook返回状态码 %d", resp.StatusCode)
	}
	return nil
}

func (a *Alerter) Close() error {
	if a.producer == nil {
		return nil
	}
	return multierr.Combine(a.producer.Close())
}
