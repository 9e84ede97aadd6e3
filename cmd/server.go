package cmd

import (
	"github.com/spf13/cobra"

	"Melodex/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动Melodex服务器",
	Long:  `启动Melodex音乐库管理器的HTTP服务器，提供API服务、同步进度推送和封面服务`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
