// Command indexd is the CLI front end over the indexd library: scan, tag
// and search a directory's file metadata, keep it live with a background
// watch daemon, and manage backups and saved views.
package main

import "github.com/marlinhq/indexd/internal/cli"

func main() {
	cli.Execute()
}
