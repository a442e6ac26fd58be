package app

import (
	"fmt"
	"io"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は取込ログのクリーンアップワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示することを示す。
	CommandHelp Command = "help"
)

// commands はサブコマンドと説明の一覧。使い方の表示順を兼ねる。
var commands = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "start the expense API server (default)"},
	{CommandWorker, "purge expired CSV import logs periodically"},
	{CommandMigrate, "apply migrations (up | down [N] | version)"},
	{CommandHealthcheck, "probe /health of a running server"},
	{CommandHelp, "show this help"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
// -h と --help はCommandHelpとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "-h", "--help":
		return CommandHelp
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd
		}
	}
	return CommandServe
}

// PrintUsage はサブコマンドの一覧をwに出力する。
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: kakeibo [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.cmd, c.desc)
	}
}
