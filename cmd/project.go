package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Cutline/core/engine"
	"Cutline/db"
	"Cutline/logger"
	"Cutline/model"
	"Cutline/repository"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// decodeProject 按扩展名解析 JSON 或 YAML 工程文件
func decodeProject(path string, data []byte) (model.Project, error) {
	var p model.Project
	var err error
	if isYAMLPath(path) {
		err = yaml.Unmarshal(data, &p)
	} else {
		err = json.Unmarshal(data, &p)
	}
	if err != nil {
		return p, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return p, nil
}

func encodeProject(path string, p model.Project) ([]byte, error) {
	if isYAMLPath(path) {
		return yaml.Marshal(p)
	}
	return json.MarshalIndent(p, "", "  ")
}

func readProject(path string) (model.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Project{}, err
	}
	return decodeProject(path, data)
}

func writeProject(path string, p model.Project) error {
	data, err := encodeProject(path, p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// validateProject 把工程加载进一个空引擎，返回加载后的快照
func validateProject(p model.Project) (model.Snapshot, error) {
	ec := cfg.Engine
	ec.AutoPreview = false
	e := engine.New(ec, engine.Deps{})
	defer e.Close()
	return e.Restore(p)
}

func summarize(p model.Project, snap model.Snapshot) string {
	clips := 0
	for _, t := range snap.Tracks {
		clips += len(t.Clips)
	}
	return fmt.Sprintf("%s (%s): %d tracks, %d clips, %d keyframes, %d links, %d markers, duration %.2fs",
		p.Name, p.ID, len(snap.Tracks), clips, len(snap.Keyframes), len(snap.Links), len(snap.Markers), snap.Duration)
}

func openRepository() repository.ProjectRepository {
	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("无法连接到数据库", logger.ErrorField(err))
	}
	if err := db.AutoMigrateModels(&model.ProjectRecord{}); err != nil {
		logger.Fatal("数据库迁移失败", logger.ErrorField(err))
	}
	return repository.NewGormProjectRepository(db.GormDB)
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "工程文件工具",
	Long:  `校验、转换工程文件，以及在数据库和本地文件之间导入导出工程。文件格式按扩展名区分 JSON 和 YAML。`,
}

var projectValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "校验工程文件",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := readProject(args[0])
		if err != nil {
			return err
		}
		snap, err := validateProject(p)
		if err != nil {
			return fmt.Errorf("invalid project: %w", err)
		}
		fmt.Println(summarize(p, snap))
		return nil
	},
}

var projectConvertCmd = &cobra.Command{
	Use:   "convert IN OUT",
	Short: "在 JSON 和 YAML 之间转换工程文件",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := readProject(args[0])
		if err != nil {
			return err
		}
		if _, err := validateProject(p); err != nil {
			return fmt.Errorf("invalid project: %w", err)
		}
		return writeProject(args[1], p)
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出数据库中的工程",
	Run: func(cmd *cobra.Command, args []string) {
		repo := openRepository()
		defer db.CloseGormDB()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		list, err := repo.List(ctx, 100, 0)
		if err != nil {
			logger.Fatal("读取工程列表失败", logger.ErrorField(err))
		}
		for _, s := range list {
			fmt.Printf("%s  r%-4d  %s  %s\n", s.ID, s.Revision, s.UpdatedAt.Format(time.RFC3339), s.Name)
		}
	},
}

var projectPullCmd = &cobra.Command{
	Use:   "pull ID FILE",
	Short: "从数据库导出工程到文件",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := openRepository()
		defer db.CloseGormDB()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		p, rev, err := repo.GetByID(ctx, args[0])
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("project %s not found", args[0])
		}
		if err := writeProject(args[1], *p); err != nil {
			return err
		}
		fmt.Printf("已导出 %s (revision %d) 到 %s\n", p.ID, rev, args[1])
		return nil
	},
}

var projectPushCmd = &cobra.Command{
	Use:   "push FILE",
	Short: "校验后把工程文件写入数据库",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := readProject(args[0])
		if err != nil {
			return err
		}
		if p.ID == "" {
			return fmt.Errorf("project in %s has no id", args[0])
		}
		if _, err := validateProject(p); err != nil {
			return fmt.Errorf("invalid project: %w", err)
		}

		repo := openRepository()
		defer db.CloseGormDB()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		rev, err := repo.Save(ctx, p)
		if err != nil {
			return err
		}
		fmt.Printf("已保存 %s, revision %d\n", p.ID, rev)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectValidateCmd, projectConvertCmd, projectListCmd, projectPullCmd, projectPushCmd)

	projectCmd.Example = `  # 校验工程文件
  cutline project validate demo.json

  # 转成 YAML
  cutline project convert demo.json demo.yaml

  # 数据库导入导出
  cutline project push demo.yaml
  cutline project pull 6f1c... demo.json`
}
