package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/sentinel-labs/netsec/internal/models"
)

var nowFn = time.Now

// Normalizer converts each adapter's tool-specific raw alert payload into
// the common NormalizedAlert shape.
type Normalizer struct {
	normalizers map[string]func(data map[string]interface{}) models.NormalizedAlert
}

func NewNormalizer() *Normalizer {
	n := &Normalizer{}
	n.normalizers = map[string]func(map[string]interface{}) models.NormalizedAlert{
		"nmap":     n.normalizeNmap,
		"suricata": n.normalizeSuricata,
		"zeek":     n.normalizeZeek,
		"openvas":  n.normalizeOpenVAS,
		"clamav":   n.normalizeClamAV,
		"ossec":    n.normalizeOSSEC,
		"fail2ban": n.normalizeFail2Ban,
	}
	return n
}

// Normalize converts a raw alert from sourceTool into a NormalizedAlert,
// deriving a fingerprint if the tool-specific normalizer didn't set one.
func (n *Normalizer) Normalize(sourceTool string, data map[string]interface{}) models.NormalizedAlert {
	var alert models.NormalizedAlert
	if fn, ok := n.normalizers[sourceTool]; ok {
		alert = fn(data)
	} else {
		alert = n.normalizeGeneric(sourceTool, data)
	}

	if alert.Severity == "" {
		alert.Severity = models.SeverityInfo
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = nowFn().UTC()
	}
	alert.SourceTool = sourceTool
	if alert.Fingerprint == "" {
		alert.Fingerprint = generateFingerprint(alert)
	}
	return alert
}

func generateFingerprint(alert models.NormalizedAlert) string {
	key := fmt.Sprintf("%s:%s:%s:%s", alert.SourceTool, alert.Category, alert.Title, alert.DeviceIP)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

func (n *Normalizer) normalizeNmap(data map[string]interface{}) models.NormalizedAlert {
	return models.NormalizedAlert{
		Title:       stringField(data, "title", "Nmap finding"),
		Description: stringField(data, "output", ""),
		Severity:    models.Severity(stringField(data, "severity", string(models.SeverityInfo))),
		Category:    models.CategoryVulnerability,
		DeviceIP:    stringField(data, "host", ""),
		RawData:     data,
	}
}

func (n *Normalizer) normalizeSuricata(data map[string]interface{}) models.NormalizedAlert {
	alertData, _ := data["alert"].(map[string]interface{})
	return models.NormalizedAlert{
		Title:         stringField(alertData, "signature", "Suricata alert"),
		Description:   fmt.Sprintf("Category: %s", stringField(alertData, "category", "unknown")),
		Severity:      suricataSeverity(intField(alertData, "severity", 3)),
		SourceEventID: stringField(alertData, "signature_id", ""),
		Category:      models.CategoryIntrusion,
		DeviceIP:      stringField(data, "src_ip", ""),
		RawData:       data,
	}
}

func (n *Normalizer) normalizeZeek(data map[string]interface{}) models.NormalizedAlert {
	note := stringField(data, "note", "")
	return models.NormalizedAlert{
		Title:       defaultString(note, "Zeek notice"),
		Description: stringField(data, "msg", ""),
		Severity:    zeekSeverity(note),
		Category:    models.CategoryAnomaly,
		DeviceIP:    stringField(data, "src", ""),
		RawData:     data,
	}
}

func (n *Normalizer) normalizeOpenVAS(data map[string]interface{}) models.NormalizedAlert {
	cvss := floatField(data, "cvss_score", 0)
	return models.NormalizedAlert{
		Title:         stringField(data, "name", "OpenVAS finding"),
		Description:   stringField(data, "description", ""),
		Severity:      cvssToSeverity(cvss),
		Category:      models.CategoryVulnerability,
		DeviceIP:      stringField(data, "host", ""),
		SourceEventID: stringField(data, "oid", ""),
		RawData:       data,
	}
}

func (n *Normalizer) normalizeClamAV(data map[string]interface{}) models.NormalizedAlert {
	return models.NormalizedAlert{
		Title:       fmt.Sprintf("Malware detected: %s", stringField(data, "signature", "unknown")),
		Description: fmt.Sprintf("File: %s", stringField(data, "file", "unknown")),
		Severity:    models.SeverityHigh,
		Category:    models.CategoryMalware,
		DeviceIP:    stringField(data, "host", ""),
		RawData:     data,
	}
}

func (n *Normalizer) normalizeOSSEC(data map[string]interface{}) models.NormalizedAlert {
	level := intField(data, "level", 0)
	return models.NormalizedAlert{
		Title:         stringField(data, "description", "OSSEC alert"),
		Description:   stringField(data, "full_log", ""),
		Severity:      ossecSeverity(level),
		SourceEventID: stringField(data, "rule_id", ""),
		Category:      models.CategoryIntrusion,
		DeviceIP:      stringField(data, "srcip", ""),
		RawData:       data,
	}
}

func (n *Normalizer) normalizeFail2Ban(data map[string]interface{}) models.NormalizedAlert {
	ip := stringField(data, "ip", "unknown")
	return models.NormalizedAlert{
		Title:       fmt.Sprintf("IP banned: %s in jail %s", ip, stringField(data, "jail", "unknown")),
		Description: fmt.Sprintf("Failures: %d", intField(data, "failures", 0)),
		Severity:    models.SeverityMedium,
		Category:    models.CategoryPolicy,
		DeviceIP:    stringField(data, "ip", ""),
		RawData:     data,
	}
}

func (n *Normalizer) normalizeGeneric(source string, data map[string]interface{}) models.NormalizedAlert {
	title := stringField(data, "title", "")
	if title == "" {
		title = stringField(data, "message", fmt.Sprintf("Alert from %s", source))
	}
	ip := stringField(data, "ip", "")
	if ip == "" {
		ip = stringField(data, "host", "")
	}
	category := models.AlertCategory(stringField(data, "category", string(models.CategoryUnknown)))
	return models.NormalizedAlert{
		Title:       title,
		Description: stringField(data, "description", ""),
		Severity:    models.Severity(stringField(data, "severity", string(models.SeverityInfo))),
		Category:    category,
		DeviceIP:    ip,
		RawData:     data,
	}
}

func suricataSeverity(level int) models.Severity {
	switch level {
	case 1:
		return models.SeverityCritical
	case 2:
		return models.SeverityHigh
	case 3:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func zeekSeverity(note string) models.Severity {
	lower := strings.ToLower(note)
	switch {
	case strings.Contains(lower, "attack") || strings.Contains(lower, "exploit"):
		return models.SeverityCritical
	case strings.Contains(lower, "scan"):
		return models.SeverityMedium
	default:
		return models.SeverityInfo
	}
}

func cvssToSeverity(score float64) models.Severity {
	switch {
	case score >= 9.0:
		return models.SeverityCritical
	case score >= 7.0:
		return models.SeverityHigh
	case score >= 4.0:
		return models.SeverityMedium
	case score > 0:
		return models.SeverityLow
	default:
		return models.SeverityInfo
	}
}

func ossecSeverity(level int) models.Severity {
	switch {
	case level >= 12:
		return models.SeverityCritical
	case level >= 8:
		return models.SeverityHigh
	case level >= 4:
		return models.SeverityMedium
	case level >= 2:
		return models.SeverityLow
	default:
		return models.SeverityInfo
	}
}

func stringField(data map[string]interface{}, key, def string) string {
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return def
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func intField(data map[string]interface{}, key string, def int) int {
	switch v := data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func floatField(data map[string]interface{}, key string, def float64) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}
