// Package issues collects problems found while building a paper: formulas
// the renderer rejected, answers that could not be resolved, a renderer
// that never became ready. None of them stop the document from being
// produced; they are kept for review.
package issues

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Kind 问题类型
type Kind string

const (
	KindMalformedMath       Kind = "malformed_math"       // 公式渲染失败
	KindUnresolvedAnswer    Kind = "unresolved_answer"    // 无法确定正确选项
	KindRendererUnavailable Kind = "renderer_unavailable" // 渲染器未就绪，降级输出
	KindImport              Kind = "import"               // 导入数据异常
)

// Record 问题记录
type Record struct {
	Ref       string    `json:"ref"`       // 占位符 ID 或题目 ID
	Kind      Kind      `json:"kind"`      // 问题类型
	Source    string    `json:"source"`    // 出问题的原始内容
	Message   string    `json:"message"`   // 错误信息
	Timestamp time.Time `json:"timestamp"` // 首次发现时间
	Count     int       `json:"count"`     // 重复出现次数
}

// Reporter receives issues. *Collector implements it.
type Reporter interface {
	Record(ref string, kind Kind, source, message string)
}

// Collector 问题收集器
type Collector struct {
	mu      sync.RWMutex
	records []*Record
	index   map[string]*Record // key: kind + ref
}

// NewCollector 创建新的问题收集器
func NewCollector() *Collector {
	return &Collector{
		index: make(map[string]*Record),
	}
}

func key(ref string, kind Kind) string {
	return string(kind) + "\x00" + ref
}

// Record 记录问题；同一 ref 与类型重复出现时只增加计数。
// A nil collector discards the record.
func (c *Collector) Record(ref string, kind Kind, source, message string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.index[key(ref, kind)]; ok {
		existing.Count++
		existing.Message = message
		return
	}

	record := &Record{
		Ref:       ref,
		Kind:      kind,
		Source:    source,
		Message:   message,
		Timestamp: time.Now(),
		Count:     1,
	}
	c.records = append(c.records, record)
	c.index[key(ref, kind)] = record
}

// List 按记录顺序列出所有问题
func (c *Collector) List() []*Record {
	return c.filter(func(*Record) bool { return true })
}

// ListByKind 列出某一类型的问题
func (c *Collector) ListByKind(kind Kind) []*Record {
	return c.filter(func(r *Record) bool { return r.Kind == kind })
}

func (c *Collector) filter(keep func(*Record) bool) []*Record {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := make([]*Record, 0, len(c.records))
	for _, record := range c.records {
		if keep(record) {
			// 创建副本以避免并发修改
			recordCopy := *record
			records = append(records, &recordCopy)
		}
	}
	return records
}

// Get 获取特定问题记录
func (c *Collector) Get(ref string, kind Kind) (*Record, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	record, ok := c.index[key(ref, kind)]
	if !ok {
		return nil, false
	}
	recordCopy := *record
	return &recordCopy, true
}

// Len returns the number of distinct issues.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// HasIssues 检查是否有问题记录
func (c *Collector) HasIssues() bool {
	return c.Len() > 0
}

// Clear 清除所有问题记录
func (c *Collector) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = nil
	c.index = make(map[string]*Record)
}

// ClearExcept 清除除指定类型以外的问题记录
func (c *Collector) ClearExcept(kinds ...Kind) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.records[:0]
	c.index = make(map[string]*Record)
	for _, record := range c.records {
		for _, k := range kinds {
			if record.Kind == k {
				kept = append(kept, record)
				c.index[key(record.Ref, record.Kind)] = record
				break
			}
		}
	}
	c.records = kept
}

// SaveJSON writes the issues to path as an indented JSON array.
func (c *Collector) SaveJSON(path string) error {
	data, err := json.MarshalIndent(c.List(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal issues: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create issues directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write issues file: %w", err)
	}
	return nil
}

// LoadJSON reads a file written by SaveJSON.
func LoadJSON(path string) (*Collector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read issues file: %w", err)
	}

	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issues: %w", err)
	}

	c := NewCollector()
	for _, record := range records {
		c.records = append(c.records, record)
		c.index[key(record.Ref, record.Kind)] = record
	}
	return c, nil
}

// KindDisplayName 获取问题类型的显示名称
func KindDisplayName(kind Kind) string {
	switch kind {
	case KindMalformedMath:
		return "Malformed formula"
	case KindUnresolvedAnswer:
		return "Unresolved answer"
	case KindRendererUnavailable:
		return "Math renderer unavailable"
	case KindImport:
		return "Import problem"
	default:
		return string(kind)
	}
}
