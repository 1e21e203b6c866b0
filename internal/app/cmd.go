package app

// Command はCLIのサブコマンドを表す。
type Command string

const (
	// CommandLogin はログインしてクレデンシャルを保存することを示す。
	CommandLogin Command = "login"
	// CommandRegister は新規ユーザー登録と自動ログインを示す。
	CommandRegister Command = "register"
	// CommandLogout はクレデンシャルを消去してサインアウトすることを示す。
	CommandLogout Command = "logout"
	// CommandWhoami は現在のセッション状態を表示することを示す。
	CommandWhoami Command = "whoami"
	// CommandRefresh はプロフィールの再取得を示す。
	CommandRefresh Command = "refresh"
	// CommandPosts は投稿一覧の取得を示す。
	CommandPosts Command = "posts"
	// CommandPost は投稿1件の取得を示す。
	CommandPost Command = "post"
	// CommandPostCreate は投稿の作成を示す。
	CommandPostCreate Command = "post-create"
	// CommandPostEdit は投稿の更新を示す。
	CommandPostEdit Command = "post-edit"
	// CommandPostDelete は投稿の削除を示す。
	CommandPostDelete Command = "post-delete"
	// CommandComments はコメント一覧の取得を示す。
	CommandComments Command = "comments"
	// CommandCommentAdd はコメントの追加を示す。
	CommandCommentAdd Command = "comment-add"
	// CommandCommentEdit はコメントの更新を示す。
	CommandCommentEdit Command = "comment-edit"
	// CommandCommentDelete はコメントの削除を示す。
	CommandCommentDelete Command = "comment-delete"
	// CommandCategories はカテゴリ一覧の取得を示す。
	CommandCategories Command = "categories"
	// CommandMock は開発用のインメモリAPIサーバーの起動を示す。
	CommandMock Command = "mock"
	// CommandHelp は使い方の表示を示す。
	CommandHelp Command = "help"
)

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を解析する。
// 引数が空またはサポート外のコマンドの場合はCommandHelpを返す。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandHelp, nil
	}

	switch Command(args[0]) {
	case CommandLogin, CommandRegister, CommandLogout, CommandWhoami, CommandRefresh,
		CommandPosts, CommandPost, CommandPostCreate, CommandPostEdit, CommandPostDelete,
		CommandComments, CommandCommentAdd, CommandCommentEdit, CommandCommentDelete,
		CommandCategories, CommandMock, CommandHelp:
		return Command(args[0]), args[1:]
	default:
		return CommandHelp, nil
	}
}
