// Package models defines the data shapes shared across the
// orchestrator: tool descriptors, alerts (in-flight and persisted),
// devices/ports, scans, and the event envelope.
package models

import "time"

// ToolCategory is the closed set of adapter capability categories.
type ToolCategory string

const (
	CategoryNetworkScanner      ToolCategory = "network-scanner"
	CategoryIDSIPS              ToolCategory = "ids-ips"
	CategoryVulnerabilityScanner ToolCategory = "vulnerability-scanner"
	CategoryTrafficAnalyzer     ToolCategory = "traffic-analyzer"
	CategoryMalwareScanner      ToolCategory = "malware-scanner"
	CategoryLogAnalyzer         ToolCategory = "log-analyzer"
	CategoryHostMonitor         ToolCategory = "host-monitor"
	CategoryAccessControl       ToolCategory = "access-control"
)

// ToolStatus is the lifecycle status of an adapter's underlying tool.
type ToolStatus string

const (
	StatusUnknown     ToolStatus = "unknown"
	StatusAvailable   ToolStatus = "available"
	StatusUnavailable ToolStatus = "unavailable"
	StatusRunning     ToolStatus = "running"
	StatusError       ToolStatus = "error"
)

// ToolInfo is the static+dynamic descriptor for one adapter.
type ToolInfo struct {
	Name           string       `json:"name"`
	DisplayName    string       `json:"display_name"`
	Category       ToolCategory `json:"category"`
	Description    string       `json:"description"`
	Version        string       `json:"version,omitempty"`
	BinaryPath     string       `json:"binary_path,omitempty"`
	Status         ToolStatus   `json:"status"`
	SupportedTasks []string     `json:"supported_tasks"`
}

// Clone returns a deep copy of the descriptor.
func (t ToolInfo) Clone() ToolInfo {
	clone := t
	if t.SupportedTasks != nil {
		clone.SupportedTasks = append([]string(nil), t.SupportedTasks...)
	}
	return clone
}

// Severity is the ordered alert severity scale, 4 > 3 > 2 > 1 > 0.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// SeverityLevels maps each severity to its ordinal rank for comparison.
var SeverityLevels = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:      3,
	SeverityMedium:    2,
	SeverityLow:       1,
	SeverityInfo:      0,
}

// AlertCategory is the closed set of alert categories.
type AlertCategory string

const (
	CategoryIntrusion     AlertCategory = "intrusion"
	CategoryMalware       AlertCategory = "malware"
	CategoryVulnerability AlertCategory = "vulnerability"
	CategoryPolicy        AlertCategory = "policy"
	CategoryAnomaly       AlertCategory = "anomaly"
	CategoryUnknown       AlertCategory = "unknown"
)

// AlertStatus is the lifecycle status of a persisted alert.
type AlertStatus string

const (
	AlertOpen          AlertStatus = "open"
	AlertAcknowledged  AlertStatus = "acknowledged"
	AlertResolved      AlertStatus = "resolved"
	AlertFalsePositive AlertStatus = "false-positive"
)

// NormalizedAlert is the canonical, tool-agnostic in-flight form of an
// alert passing through the pipeline.
type NormalizedAlert struct {
	Title         string                 `json:"title"`
	Description   string                 `json:"description,omitempty"`
	Severity      Severity               `json:"severity"`
	SourceTool    string                 `json:"source_tool"`
	SourceEventID string                 `json:"source_event_id,omitempty"`
	Category      AlertCategory          `json:"category"`
	DeviceIP      string                 `json:"device_ip,omitempty"`
	Fingerprint   string                 `json:"fingerprint"`
	Timestamp     time.Time              `json:"timestamp"`
	RawData       map[string]interface{} `json:"raw_data,omitempty"`
}

// Clone returns a deep copy of the normalized alert.
func (a NormalizedAlert) Clone() NormalizedAlert {
	clone := a
	clone.RawData = cloneMap(a.RawData)
	return clone
}

// Alert is the durable, persisted form of an alert.
type Alert struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description,omitempty"`
	Severity      Severity               `json:"severity"`
	Status        AlertStatus            `json:"status"`
	SourceTool    string                 `json:"source_tool"`
	SourceEventID string                 `json:"source_event_id,omitempty"`
	Category      AlertCategory          `json:"category"`
	DeviceIP      string                 `json:"device_ip,omitempty"`
	DeviceID      string                 `json:"device_id,omitempty"`
	Fingerprint   string                 `json:"fingerprint"`
	Count         int                    `json:"count"`
	FirstSeen     time.Time              `json:"first_seen"`
	LastSeen      time.Time              `json:"last_seen"`
	RawData       map[string]interface{} `json:"raw_data,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Notes         string                 `json:"notes,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Clone returns a deep copy of the persisted alert.
func (a Alert) Clone() Alert {
	clone := a
	clone.RawData = cloneMap(a.RawData)
	return clone
}

// AlertStats holds the total number of alerts (any status) and open-alert
// counts grouped two ways.
type AlertStats struct {
	Total         int            `json:"total"`
	OpenBySeverity map[string]int `json:"open_by_severity"`
	OpenByTool     map[string]int `json:"open_by_tool"`
}

// DeviceStatus is the availability status of a device.
type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
)

// PortState is the observed state of a port.
type PortState string

const (
	PortOpen     PortState = "open"
	PortClosed   PortState = "closed"
	PortFiltered PortState = "filtered"
)

// Protocol is the transport protocol of a port.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// Port is owned by exactly one device; identity is (PortNumber, Protocol).
type Port struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"device_id"`
	PortNumber     int       `json:"port_number"`
	Protocol       Protocol  `json:"protocol"`
	State          PortState `json:"state"`
	ServiceName    string    `json:"service_name,omitempty"`
	ServiceVersion string    `json:"service_version,omitempty"`
	Banner         string    `json:"banner,omitempty"`
}

// Clone returns a copy of the port.
func (p Port) Clone() Port { return p }

// Device is a discovered or manually-registered network endpoint.
type Device struct {
	ID         string       `json:"id"`
	IPAddress  string       `json:"ip_address"`
	MACAddress string       `json:"mac_address,omitempty"`
	Hostname   string       `json:"hostname,omitempty"`
	Vendor     string       `json:"vendor,omitempty"`
	OSFamily   string       `json:"os_family,omitempty"`
	OSVersion  string       `json:"os_version,omitempty"`
	DeviceType string       `json:"device_type,omitempty"`
	Status     DeviceStatus `json:"status"`
	FirstSeen  time.Time    `json:"first_seen"`
	LastSeen   time.Time    `json:"last_seen"`
	Notes      string       `json:"notes,omitempty"`
	Ports      []Port       `json:"ports,omitempty"`
}

// Clone returns a deep copy of the device, including its ports.
func (d Device) Clone() Device {
	clone := d
	if d.Ports != nil {
		clone.Ports = make([]Port, len(d.Ports))
		copy(clone.Ports, d.Ports)
	}
	return clone
}

// ScanStatus is the lifecycle status of a scan.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
	ScanCancelled ScanStatus = "cancelled"
)

// IsTerminal reports whether the scan status is a terminal state.
func (s ScanStatus) IsTerminal() bool {
	switch s {
	case ScanCompleted, ScanFailed, ScanCancelled:
		return true
	default:
		return false
	}
}

// Scan is a single invocation of a tool against a target.
type Scan struct {
	ID             string                 `json:"id"`
	ScanType       string                 `json:"scan_type"`
	Tool           string                 `json:"tool"`
	Target         string                 `json:"target"`
	Status         ScanStatus             `json:"status"`
	Progress       int                    `json:"progress"`
	StartedAt      *time.Time             `json:"started_at,omitempty"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
	Results        map[string]interface{} `json:"results,omitempty"`
	ResultSummary  string                 `json:"result_summary,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	DevicesFound   int                    `json:"devices_found"`
	AlertsGenerated int                   `json:"alerts_generated"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Clone returns a deep copy of the scan.
func (s Scan) Clone() Scan {
	clone := s
	clone.Parameters = cloneMap(s.Parameters)
	clone.Results = cloneMap(s.Results)
	if s.StartedAt != nil {
		t := *s.StartedAt
		clone.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		clone.CompletedAt = &t
	}
	return clone
}

// EventType is the closed enumeration of event-bus event types.
type EventType string

const (
	EventScanStarted      EventType = "scan.started"
	EventScanProgress     EventType = "scan.progress"
	EventScanCompleted    EventType = "scan.completed"
	EventScanFailed       EventType = "scan.failed"
	EventDeviceDiscovered EventType = "device.discovered"
	EventDeviceUpdated    EventType = "device.updated"
	EventDeviceOffline    EventType = "device.offline"
	EventAlertCreated     EventType = "alert.created"
	EventAlertUpdated     EventType = "alert.updated"
	EventAlertResolved    EventType = "alert.resolved"
	EventToolOnline       EventType = "tool.online"
	EventToolOffline      EventType = "tool.offline"
	EventSystemStartup    EventType = "system.startup"
	EventSystemShutdown   EventType = "system.shutdown"
)

// Event is an immutable tuple published on the in-process bus.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	clone := e
	clone.Data = cloneMap(e.Data)
	return clone
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
