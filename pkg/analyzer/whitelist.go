package analyzer

import (
	"net"
	"strings"
	"sync"

	"go-sysmonitor/pkg/logger"
)

// Whitelist 本地白名单，命中的地址不消耗信誉查询
type Whitelist struct {
	nets []*net.IPNet
	mu   sync.RWMutex
}

func NewWhitelist(ips []string) *Whitelist {
	w := &Whitelist{
		nets: make([]*net.IPNet, 0),
	}
	if len(ips) > 0 {
		w.Update(ips)
	} else {
		logger.Log.Warnf("配置文件中未找到白名单IP")
	}
	return w
}

func (w *Whitelist) Update(ips []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nets = make([]*net.IPNet, 0, len(ips))

	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		// 处理CIDR格式，IPv6 单地址补 /128
		if !strings.Contains(ip, "/") {
			if strings.Contains(ip, ":") {
				ip += "/128"
			} else {
				ip += "/32"
			}
		}

		_, ipnet, err := net.ParseCIDR(ip)
		if err != nil {
			logger.Log.Errorf("无效的CIDR格式: %s, 错误: %v", ip, err)
			continue
		}
		w.nets = append(w.nets, ipnet)
		logger.Log.Debugf("添加白名单: %s", ipnet.String())
	}

	logger.Log.Infof("白名单更新完成，共 %d 条记录", len(w.nets))
}

func (w *Whitelist) ContainsIP(ipStr string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.nets) == 0 {
		return false
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		logger.Log.Warnf("无效的IP地址: %s", ipStr)
		return false
	}

	for _, ipnet := range w.nets {
		if ipnet.Contains(ip) {
			logger.Log.Debugf("IP %s 匹配白名单 %s", ipStr, ipnet.String())
			return true
		}
	}

	return false
}
