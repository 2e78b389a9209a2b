// Package types defines core data types and enums for the MCQ paper builder.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Config 应用配置
type Config struct {
	FontSize             float64       `json:"font_size" mapstructure:"font_size"`
	FontWeight           string        `json:"font_weight" mapstructure:"font_weight"`
	FontColor            string        `json:"font_color" mapstructure:"font_color"`
	OptionNumberingStyle string        `json:"option_numbering_style" mapstructure:"option_numbering_style"`
	AnswerKeyMode        string        `json:"answer_key_mode" mapstructure:"answer_key_mode"`
	ErrorColor           string        `json:"error_color" mapstructure:"error_color"`                     // 公式渲染失败时的标记颜色
	RendererReadyTimeout time.Duration `json:"renderer_ready_timeout" mapstructure:"renderer_ready_timeout"` // 等待公式渲染器就绪的最长时间
	RendererPollInterval time.Duration `json:"renderer_poll_interval" mapstructure:"renderer_poll_interval"`
	ClientTypeset        bool          `json:"client_typeset" mapstructure:"client_typeset"` // 打印页面加载 KaTeX 排版公式
	PageNumbers          bool          `json:"page_numbers" mapstructure:"page_numbers"`
	OutputDirectory      string        `json:"output_directory" mapstructure:"output_directory"`
	LogFilePath          string        `json:"log_file_path" mapstructure:"log_file_path"`
	LogLevel             string        `json:"log_level" mapstructure:"log_level"`
}

// Option 选项
type Option struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Question 题目
type Question struct {
	ID            string         `json:"id"`
	QuestionText  string         `json:"question_text"`
	QuestionImage string         `json:"question_image,omitempty"`
	Options       []Option       `json:"options"`
	CorrectAnswer string         `json:"correct_answer,omitempty"` // 选项原文或字母 A-E
	Explanation   string         `json:"explanation,omitempty"`
	SectionName   string         `json:"section_name,omitempty"`
	Tags          map[string]any `json:"tags,omitempty"`
}

// Section 题目分组；没有分组的题目列表视为一个无名分组
type Section struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// FlattenQuestions returns the questions of all sections in document order.
func FlattenQuestions(sections []Section) []Question {
	var out []Question
	for _, s := range sections {
		out = append(out, s.Questions...)
	}
	return out
}

// SegmentKind distinguishes plain text from math in a scanned string.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentMath
)

// String returns the string representation of the segment kind
func (k SegmentKind) String() string {
	switch k {
	case SegmentText:
		return "text"
	case SegmentMath:
		return "math"
	default:
		return "unknown"
	}
}

// Segment is one typed run of a mixed text/math string.
type Segment struct {
	Kind        SegmentKind `json:"kind"`
	DisplayMode bool        `json:"display_mode"` // only meaningful for math
	Content     string      `json:"content"`
}

// TextSegment builds a plain-text segment.
func TextSegment(content string) Segment {
	return Segment{Kind: SegmentText, Content: content}
}

// MathSegment builds a math segment.
func MathSegment(content string, display bool) Segment {
	return Segment{Kind: SegmentMath, DisplayMode: display, Content: content}
}

// Watermark 水印设置
type Watermark struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Text    string `json:"text" mapstructure:"text"`
}

// Active reports whether the watermark should be drawn.
func (w Watermark) Active() bool {
	return w.Enabled && strings.TrimSpace(w.Text) != ""
}

// FontWeight 字重
type FontWeight string

const (
	FontWeightNormal FontWeight = "normal"
	FontWeightBold   FontWeight = "bold"
)

// ParseFontWeight validates a font weight name; empty means normal.
func ParseFontWeight(s string) (FontWeight, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return FontWeightNormal, nil
	case "bold":
		return FontWeightBold, nil
	default:
		return "", NewAppErrorWithDetails(ErrInvalidInput, "unsupported font weight", s, nil)
	}
}

// AnswerKeyMode 答案页显示模式
type AnswerKeyMode string

const (
	AnswerKeyNone            AnswerKeyMode = "NONE"
	AnswerKeyOnly            AnswerKeyMode = "KEY_ONLY"
	AnswerKeyWithExplanation AnswerKeyMode = "KEY_AND_EXPLANATION"
)

// ParseAnswerKeyMode validates an answer key mode name; empty means NONE.
func ParseAnswerKeyMode(s string) (AnswerKeyMode, error) {
	switch AnswerKeyMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", AnswerKeyNone:
		return AnswerKeyNone, nil
	case AnswerKeyOnly:
		return AnswerKeyOnly, nil
	case AnswerKeyWithExplanation:
		return AnswerKeyWithExplanation, nil
	default:
		return "", NewAppErrorWithDetails(ErrInvalidInput, "unsupported answer key mode", s, nil)
	}
}

// DocumentConfig 试卷排版设置
type DocumentConfig struct {
	PaperTitle           string        `json:"paper_title"`
	Instructions         string        `json:"instructions"`
	Header               []string      `json:"header"`
	Footer               []string      `json:"footer"`
	Watermark            Watermark     `json:"watermark"`
	FontSize             float64       `json:"font_size"`
	FontWeight           FontWeight    `json:"font_weight"`
	FontColor            string        `json:"font_color"`
	OptionNumberingStyle string        `json:"option_numbering_style"`
	AnswerKeyDisplayMode AnswerKeyMode `json:"answer_key_display_mode"`
}

// Placeholder roles. Every rendered string in a document is addressed by
// (question id, role).
const (
	RoleQuestionText = "question-text"
	RoleExplanation  = "explanation"
	rolePrefixOption = "option-"
)

// OptionRole returns the role name of the option at index i.
func OptionRole(i int) string {
	return fmt.Sprintf("%s%d", rolePrefixOption, i)
}

// PlaceholderID derives the stable element identifier for a question role.
func PlaceholderID(questionID, role string) string {
	switch {
	case role == RoleQuestionText:
		return "question-" + questionID + "-text"
	case role == RoleExplanation:
		return "explanation-" + questionID
	case strings.HasPrefix(role, rolePrefixOption):
		return "option-" + questionID + "-" + strings.TrimPrefix(role, rolePrefixOption)
	default:
		return questionID + "-" + role
	}
}

// ProcessPhase 处理阶段枚举
type ProcessPhase string

const (
	PhaseIdle       ProcessPhase = "idle"
	PhaseImporting  ProcessPhase = "importing"
	PhaseAssembling ProcessPhase = "assembling"
	PhaseRendering  ProcessPhase = "rendering"
	PhaseWriting    ProcessPhase = "writing"
	PhaseFinishing  ProcessPhase = "finishing"
	PhaseComplete   ProcessPhase = "complete"
	PhaseError      ProcessPhase = "error"
)

// Status 处理状态
type Status struct {
	Phase    ProcessPhase `json:"phase"`
	Progress int          `json:"progress"` // 0-100
	Message  string       `json:"message"`
	Error    string       `json:"error,omitempty"`
}

// BuildResult 试卷生成结果
type BuildResult struct {
	HTMLPath   string `json:"html_path"`
	IssuesPath string `json:"issues_path,omitempty"` // 没有问题时为空
	Questions  int    `json:"questions"`
	Failures   int    `json:"failures"`   // 渲染失败的公式数
	Unresolved int    `json:"unresolved"` // 无法确定答案的题目数
	Degraded   bool   `json:"degraded"`   // 公式以源码形式输出
}
