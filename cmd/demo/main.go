// cmd/demo/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Corphon/ScriptStudio/internal/app"
	"github.com/Corphon/ScriptStudio/internal/config"
	"github.com/Corphon/ScriptStudio/internal/di"
	"github.com/Corphon/ScriptStudio/internal/gateway"
	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/services"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

var stdin = bufio.NewScanner(os.Stdin)

type console struct {
	models      *services.ModelService
	credentials *services.CredentialService
	screenplay  *services.ScreenplayService
	brief       models.StoryBrief
}

func main() {
	fmt.Println("🎬 ScriptStudio Console")
	fmt.Println("=======================")

	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ 加载基础配置失败: %v", err)
	}

	logFile := ""
	if baseConfig.LogDir != "" {
		logFile = filepath.Join(baseConfig.LogDir, fmt.Sprintf("console_%s.log", time.Now().Format("2006-01-02")))
	}
	if err := utils.InitLogger(logFile, "warn", "console"); err != nil {
		log.Printf("⚠️ 无法初始化结构化日志: %v", err)
	}
	if err := config.InitConfig(baseConfig); err != nil {
		log.Fatalf("❌ 初始化配置失败: %v", err)
	}

	container := di.NewContainer()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	closers, err := app.InitServices(ctx, baseConfig, container)
	cancel()
	if err != nil {
		log.Fatalf("❌ 初始化服务失败: %v", err)
	}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	c := &console{
		models:      di.MustResolve[*services.ModelService](container, di.ServiceModel),
		credentials: di.MustResolve[*services.CredentialService](container, di.ServiceCredential),
		screenplay:  di.MustResolve[*services.ScreenplayService](container, di.ServiceScreenplay),
	}

	for {
		showMenu()
		switch getUserInput("请选择: ") {
		case "1", "models":
			c.listModels()
		case "2", "key":
			c.setCredential()
		case "3", "brief":
			c.editBrief()
		case "4", "generate":
			c.generate()
		case "0", "quit", "exit":
			fmt.Println("👋 再见")
			return
		default:
			fmt.Println("无效的选择")
		}
		fmt.Println()
	}
}

// 显示菜单
func showMenu() {
	fmt.Println("  1. 模型列表")
	fmt.Println("  2. 设置 API 密钥")
	fmt.Println("  3. 编辑故事资料")
	fmt.Println("  4. 生成")
	fmt.Println("  0. 退出")
}

// 获取用户输入
func getUserInput(prompt string) string {
	fmt.Print(prompt)
	if !stdin.Scan() {
		// 输入结束
		fmt.Println()
		os.Exit(0)
	}
	return strings.TrimSpace(stdin.Text())
}

// 获取用户输入 (带默认值)
func getUserInputWithDefault(prompt, defaultValue string) string {
	if defaultValue != "" {
		prompt = fmt.Sprintf("%s [默认: %s]: ", prompt, defaultValue)
	} else {
		prompt += ": "
	}
	if input := getUserInput(prompt); input != "" {
		return input
	}
	return defaultValue
}

func (c *console) listModels() {
	list, err := c.models.Models(context.Background())
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	for _, m := range list {
		mark := " "
		if m.IsDefault {
			mark = "*"
		}
		fmt.Printf(" %s %-40s %-18s %s\n", mark, m.ID, m.Provider, m.Family)
	}
}

func (c *console) setCredential() {
	name := getUserInputWithDefault("凭据名称", gateway.NativeCredentialKey)
	value := getUserInput("值: ")
	if err := c.credentials.Set(context.Background(), name, value); err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	fmt.Println("✅ 已保存")
}

func (c *console) editBrief() {
	c.brief.Title = getUserInputWithDefault("标题", c.brief.Title)
	c.brief.Logline = getUserInputWithDefault("一句话梗概", c.brief.Logline)
	c.brief.Genre = getUserInputWithDefault("类型", c.brief.Genre)
	c.brief.Language = getUserInputWithDefault("输出语言", c.brief.Language)
	for {
		heading := getUserInput("添加场景标题（留空结束）: ")
		if heading == "" {
			break
		}
		summary := getUserInput("  场景概要: ")
		c.brief.Scenes = append(c.brief.Scenes, models.SceneOutline{Heading: heading, Summary: summary})
	}
}

func (c *console) generate() {
	kind := getUserInputWithDefault("类型 ("+strings.Join(services.Kinds(), ", ")+")", services.KindSynopsis)
	modelID := getUserInputWithDefault("模型 ID（留空使用默认）", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Println("⏳ 生成中...")
	artifact, err := c.screenplay.Generate(ctx, kind, services.ScreenplayRequest{ModelID: modelID, Brief: c.brief})
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	fmt.Printf("\n== %s | %s | %dms ==\n\n%s\n", artifact.Kind, artifact.ModelName, artifact.DurationMS, artifact.Content)
}
