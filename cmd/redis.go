package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"Cutline/cache"

	"github.com/spf13/cobra"
)

var redisRecent bool

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，并进行基本读写操作。加 --recent 列出最近保存的工程快照。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始测试Redis连接...")
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		// 连接Redis
		if err := cache.ConnectRedis(cfg); err != nil {
			log.Fatalf("无法连接到Redis: %v", err)
		}
		defer func() {
			if err := cache.CloseRedis(); err != nil {
				log.Printf("关闭Redis连接时发生错误: %v", err)
			}
			fmt.Println("Redis测试完成，连接已关闭。")
		}()
		fmt.Println("Redis连接成功！")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		fmt.Println("开始测试Redis基本操作...")
		if err := cache.TestRedis(ctx, cache.RedisClient); err != nil {
			log.Fatalf("Redis操作测试失败: %v", err)
		}
		fmt.Println("Redis基本操作测试成功！")

		if !redisRecent {
			return
		}
		snapshots := cache.NewSnapshotCache(cache.RedisClient, cfg.SnapshotTTL)
		ids, err := snapshots.Recent(ctx, 0)
		if err != nil {
			log.Fatalf("读取最近工程失败: %v", err)
		}
		fmt.Printf("\n最近保存的工程 (%d):\n", len(ids))
		for _, id := range ids {
			rev, err := snapshots.Revision(ctx, id)
			if err != nil {
				fmt.Printf("  %s  (revision unknown: %v)\n", id, err)
				continue
			}
			fmt.Printf("  %s  revision %d\n", id, rev)
		}
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
	redisCmd.Flags().BoolVar(&redisRecent, "recent", false, "列出最近保存的工程快照")
}
