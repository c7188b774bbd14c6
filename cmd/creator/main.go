// Command creator は6IXのWebサーバー・通知ワーカー・マイグレーションを起動する。
//
//	creator [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/6ixhq/creator/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "creator: %v\n", err)
		os.Exit(1)
	}
}
