package cli

import (
	cli "github.com/urfave/cli/v2"
)

// serve flags
var (
	ListenAddr     string
	Lang           string
	Charset        string
	IdleTimeoutSec int
	MaxSessions    int
	PeerRate       float64
	PeerBurst      int
	MirrorDir      string
	ReportPath     string
	Legacy         bool
	WebPort        int
	ConfigPath     string
)

// send flags
var (
	RemoteAddr       string
	ClientListen     string
	InputFile        string
	OutputDir        string
	ReplyTimeoutMs   int
	MaxRetries       int
	BackoffInitialMs int
	BackoffMaxMs     int
	LinesPerSecond   float64
)

// shared
var (
	DSCP     int
	LogLevel string
)

var commonFlags = []cli.Flag{
	&cli.IntFlag{
		Name:        "dscp",
		Usage:       "DSCP 标记 (0-63)，0 表示不设置",
		EnvVars:     []string{"MAYUS_DSCP"},
		Destination: &DSCP,
	},
	&cli.StringFlag{
		Name:        "log_level",
		Usage:       "log level",
		Value:       "info",
		EnvVars:     []string{"MAYUS_LOG_LEVEL"},
		Destination: &LogLevel,
	},
}

var ServeFlags = append([]cli.Flag{
	&cli.StringFlag{
		Name:        "listen",
		Aliases:     []string{"l"},
		Usage:       "监听地址，例如 0.0.0.0:8500",
		Value:       ":8500",
		EnvVars:     []string{"MAYUS_LISTEN"},
		Destination: &ListenAddr,
	},
	&cli.StringFlag{
		Name:        "lang",
		Usage:       "大写转换使用的语言标签，例如 tr, de",
		EnvVars:     []string{"MAYUS_LANG"},
		Destination: &Lang,
	},
	&cli.StringFlag{
		Name:        "charset",
		Usage:       "文本编码，例如 utf-8, iso-8859-1",
		Value:       "utf-8",
		EnvVars:     []string{"MAYUS_CHARSET"},
		Destination: &Charset,
	},
	&cli.IntFlag{
		Name:        "idle_timeout_sec",
		Usage:       "会话空闲多少秒后过期，0 表示不过期",
		EnvVars:     []string{"MAYUS_IDLE_TIMEOUT_SEC"},
		Destination: &IdleTimeoutSec,
	},
	&cli.IntFlag{
		Name:        "max_sessions",
		Usage:       "同时存在的最大会话数，0 表示不限制",
		EnvVars:     []string{"MAYUS_MAX_SESSIONS"},
		Destination: &MaxSessions,
	},
	&cli.Float64Flag{
		Name:        "peer_rate",
		Usage:       "每个对端每秒最多处理的数据报数，0 表示不限速",
		EnvVars:     []string{"MAYUS_PEER_RATE"},
		Destination: &PeerRate,
	},
	&cli.IntFlag{
		Name:        "peer_burst",
		Usage:       "限速的突发容量",
		EnvVars:     []string{"MAYUS_PEER_BURST"},
		Destination: &PeerBurst,
	},
	&cli.StringFlag{
		Name:        "mirror_dir",
		Usage:       "在服务端同时保存一份转换结果的目录",
		EnvVars:     []string{"MAYUS_MIRROR_DIR"},
		Destination: &MirrorDir,
	},
	&cli.StringFlag{
		Name:        "report",
		Usage:       "退出时把会话记录写入这个 xlsx 文件",
		EnvVars:     []string{"MAYUS_REPORT"},
		Destination: &ReportPath,
	},
	&cli.BoolFlag{
		Name:        "legacy",
		Usage:       "单次传输模式：第一个数据报是文件名，空数据报结束服务",
		EnvVars:     []string{"MAYUS_LEGACY"},
		Destination: &Legacy,
	},
	&cli.IntFlag{
		Name:        "web_port",
		Usage:       "prometheus 和会话 API 的监听端口，0 表示不启动",
		EnvVars:     []string{"MAYUS_WEB_PORT"},
		Destination: &WebPort,
	},
	&cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "JSON 配置文件，设置后忽略其他参数",
		EnvVars:     []string{"MAYUS_CONFIG_FILE"},
		Destination: &ConfigPath,
	},
}, commonFlags...)

var SendFlags = append([]cli.Flag{
	&cli.StringFlag{
		Name:        "remote",
		Aliases:     []string{"r"},
		Usage:       "服务端地址，例如 127.0.0.1:8500",
		EnvVars:     []string{"MAYUS_REMOTE_ADDR"},
		Destination: &RemoteAddr,
		Required:    true,
	},
	&cli.StringFlag{
		Name:        "listen",
		Aliases:     []string{"l"},
		Usage:       "本地地址",
		Value:       ":8000",
		EnvVars:     []string{"MAYUS_CLIENT_LISTEN"},
		Destination: &ClientListen,
	},
	&cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "要转换的文本文件",
		EnvVars:     []string{"MAYUS_FILE"},
		Destination: &InputFile,
		Required:    true,
	},
	&cli.StringFlag{
		Name:        "output_dir",
		Usage:       "输出文件所在目录",
		EnvVars:     []string{"MAYUS_OUTPUT_DIR"},
		Destination: &OutputDir,
	},
	&cli.IntFlag{
		Name:        "reply_timeout_ms",
		Usage:       "等待回复的毫秒数，0 表示一直等待",
		EnvVars:     []string{"MAYUS_REPLY_TIMEOUT_MS"},
		Destination: &ReplyTimeoutMs,
	},
	&cli.IntFlag{
		Name:        "max_retries",
		Usage:       "超时后的最大重传次数",
		Value:       3,
		EnvVars:     []string{"MAYUS_MAX_RETRIES"},
		Destination: &MaxRetries,
	},
	&cli.IntFlag{
		Name:        "backoff_initial_ms",
		Usage:       "第一次重传前的等待毫秒数",
		EnvVars:     []string{"MAYUS_BACKOFF_INITIAL_MS"},
		Destination: &BackoffInitialMs,
		DefaultText: "200",
	},
	&cli.IntFlag{
		Name:        "backoff_max_ms",
		Usage:       "重传等待的上限毫秒数",
		EnvVars:     []string{"MAYUS_BACKOFF_MAX_MS"},
		Destination: &BackoffMaxMs,
		DefaultText: "5000",
	},
	&cli.Float64Flag{
		Name:        "lines_per_second",
		Usage:       "每秒最多发送的行数，0 表示不限速",
		EnvVars:     []string{"MAYUS_LINES_PER_SECOND"},
		Destination: &LinesPerSecond,
	},
}, commonFlags...)
