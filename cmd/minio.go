package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"Cutline/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioDelete bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO预览存储管理",
	Long:  `查看和清理MinIO中的预览缓存，支持按前缀统计对象数量和大小、删除目录等功能。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		client, err := storage.NewMinio(cfg)
		if err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if minioDelete {
			fmt.Printf("\n删除目录: %s\n", minioPrefix)
			n, err := storage.DeletePrefix(ctx, client, cfg.MinioBucket, minioPrefix)
			if err != nil {
				log.Fatalf("删除目录失败: %v", err)
			}
			fmt.Printf("已删除 %d 个对象\n", n)
			return
		}

		fmt.Printf("\n获取统计信息 (前缀: %s)...\n", minioPrefix)
		stats, err := storage.Stats(ctx, client, cfg.MinioBucket, minioPrefix)
		if err != nil {
			log.Fatalf("获取统计信息失败: %v", err)
		}
		fmt.Printf("对象数量: %d\n", stats.TotalObjects)
		fmt.Printf("总大小: %s\n", storage.FormatSize(stats.TotalSize))
		if !stats.LastModified.IsZero() {
			fmt.Printf("最后修改: %s\n", stats.LastModified.Format(time.RFC3339))
		}
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", storage.PreviewPrefix, "统计或删除的目录前缀")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定目录及其下的所有文件")

	minioCmd.Example = `  # 统计全部预览缓存
  cutline minio

  # 统计某个前缀
  cutline minio -p "previews/ab/"

  # 清空预览缓存
  cutline minio -d -p "previews/"`
}
