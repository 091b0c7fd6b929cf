package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は取り込みパイプラインとAPIサーバーを起動することを示す。
	CommandServe Command = "serve"
	// CommandTail はクライアントとしてサーバーに接続し、
	// 統合済みの記事リストを標準出力へ流すことを示す。
	CommandTail Command = "tail"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "tail":
		return CommandTail
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
