package i18n

import (
	"reflect"
	"strings"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// Messages holds all translatable strings
type Messages struct {
	// System
	Starting           string
	ConfigLoaded       string
	UsingDBPath        string
	ServerListening    string
	ShuttingDown       string
	ShutdownComplete   string
	ConfigLoadFailed   string
	DBInitFailed       string
	DBMigrationsFailed string
	APIServerError     string

	// Advisor
	MockModeEnabled  string
	FixturesLoaded   string
	FixturesFailed   string
	LLMConfigured    string
	LLMKeyMissing    string
	ProvidersEnabled string

	// Health
	GRPCHealthListening string
	GRPCHealthFailed    string
	HostIDUnavailable   string
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages
)

// English messages
var messagesEN = Messages{
	// System
	Starting:           "Starting advisor core...",
	ConfigLoaded:       "Configuration loaded",
	UsingDBPath:        "Using chat history database: %s",
	ServerListening:    "Server listening on :%s",
	ShuttingDown:       "Shutting down...",
	ShutdownComplete:   "Shutdown complete",
	ConfigLoadFailed:   "Failed to load config: %v",
	DBInitFailed:       "Failed to open database: %v",
	DBMigrationsFailed: "Failed to apply migrations: %v",
	APIServerError:     "API server error: %v",

	// Advisor
	MockModeEnabled:  "Mock mode enabled: canned advisor and fixture data",
	FixturesLoaded:   "Mock fixtures loaded from %s",
	FixturesFailed:   "Failed to load mock fixtures: %v",
	LLMConfigured:    "LLM advisor configured (model %s)",
	LLMKeyMissing:    "LLM_API_KEY is empty; requests to the model may be rejected",
	ProvidersEnabled: "Providers: news=%t market=%t",

	// Health
	GRPCHealthListening: "gRPC health listening on %s",
	GRPCHealthFailed:    "gRPC health server error: %v",
	HostIDUnavailable:   "Host id unavailable: %v",
}

// Chinese messages
var messagesZH = Messages{
	// System
	Starting:           "启动投资顾问服务...",
	ConfigLoaded:       "配置已加载",
	UsingDBPath:        "聊天记录数据库: %s",
	ServerListening:    "服务监听于 :%s",
	ShuttingDown:       "正在关闭...",
	ShutdownComplete:   "关闭完成",
	ConfigLoadFailed:   "加载配置失败: %v",
	DBInitFailed:       "打开数据库失败: %v",
	DBMigrationsFailed: "数据库迁移失败: %v",
	APIServerError:     "API 服务错误: %v",

	// Advisor
	MockModeEnabled:  "已启用模拟模式：固定回复与样例数据",
	FixturesLoaded:   "已从 %s 加载模拟数据",
	FixturesFailed:   "加载模拟数据失败: %v",
	LLMConfigured:    "已配置大模型顾问 (模型 %s)",
	LLMKeyMissing:    "LLM_API_KEY 为空，模型请求可能被拒绝",
	ProvidersEnabled: "数据源: 资讯=%t 行情=%t",

	// Health
	GRPCHealthListening: "gRPC 健康检查监听于 %s",
	GRPCHealthFailed:    "gRPC 健康检查服务错误: %v",
	HostIDUnavailable:   "无法获取主机标识: %v",
}

func init() {
	messages = &messagesEN
}

// Parse maps a LANGUAGE value to a Language; anything but zh is English.
func Parse(s string) Language {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "zh") {
		return LangZH
	}
	return LangEN
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangZH:
		messages = &messagesZH
	default:
		messages = &messagesEN
	}
}

// GetLanguage returns the current language
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// Get returns specific message by key dynamically using reflection
func Get(key string) string {
	msg := M()
	v := reflect.ValueOf(msg).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return key
}
