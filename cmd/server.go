package cmd

import (
	"Cutline/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动时间线编辑服务",
	Long:  `启动 HTTP/WebSocket 编辑服务。Redis、MinIO 和 MySQL 均为可选，不可用时对应的缓存和持久化功能自动关闭。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTPAddr = addr
		}
		if dir, _ := cmd.Flags().GetString("media"); dir != "" {
			cfg.MediaDir = dir
		}
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().String("addr", "", "监听地址，覆盖 HTTP_ADDR")
	serverCmd.Flags().String("media", "", "媒体目录，覆盖 MEDIA_DIR")
}
