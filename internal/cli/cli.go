package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"

	"vnet/internal/arp"
	"vnet/internal/config"
	"vnet/internal/device"
	"vnet/internal/forwarding"
	"vnet/internal/routing"
)

// CLI 命令行接口
type CLI struct {
	device      *device.Device
	out         io.Writer
	running     bool
	exitChan    chan bool
	rl          *readline.Instance
	historyFile string
}

// NewCLI 创建CLI实例
// historyFile 为空时使用 ~/.vnet_history
func NewCLI(d *device.Device, out io.Writer, historyFile string) *CLI {
	if out == nil {
		out = os.Stdout
	}
	if historyFile == "" {
		// 获取用户主目录
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "/tmp"
		}
		historyFile = filepath.Join(homeDir, ".vnet_history")
	}

	return &CLI{
		device:      d,
		out:         out,
		exitChan:    make(chan bool, 1),
		historyFile: historyFile,
	}
}

// Start 启动交互循环，直到输入 exit/quit 或遇到EOF
func (cli *CLI) Start() {
	cli.running = true
	fmt.Fprintf(cli.out, "vnet %s 控制台已启动 (角色: %s)\n", cli.device.Config().Hostname, cli.device.Role())
	fmt.Fprintln(cli.out, "输入 'help' 查看可用命令")
	fmt.Fprintln(cli.out, "使用上下方向键浏览命令历史，Tab键自动补全")

	cfg := &readline.Config{
		Prompt:          cli.device.Config().Hostname + "> ",
		HistoryFile:     cli.historyFile,
		AutoComplete:    cli.createCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}

	var err error
	cli.rl, err = readline.NewEx(cfg)
	if err != nil {
		fmt.Fprintf(cli.out, "初始化CLI失败: %v\n", err)
		cli.Stop()
		return
	}
	defer func() {
		_ = cli.rl.Close()
	}()

	for cli.running {
		line, err := cli.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			} else if err == io.EOF {
				break
			}
			fmt.Fprintf(cli.out, "读取输入失败: %v\n", err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cli.processCommand(line)
	}
	cli.Stop()
}

// Stop 停止CLI
func (cli *CLI) Stop() {
	cli.running = false
	select {
	case cli.exitChan <- true:
	default:
	}
}

// GetExitChan 获取退出信号channel
func (cli *CLI) GetExitChan() <-chan bool {
	return cli.exitChan
}

// Execute 执行一条命令，非交互场景使用
func (cli *CLI) Execute(line string) {
	cli.processCommand(strings.TrimSpace(line))
}

// processCommand 处理命令
func (cli *CLI) processCommand(line string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return
	}

	command := parts[0]
	args := parts[1:]

	switch command {
	case "help":
		cli.showHelp()
	case "show":
		cli.handleShowCommand(args)
	case "lookup":
		cli.handleLookupCommand(args)
	case "save":
		cli.handleSaveCommand()
	case "reload":
		cli.handleReloadCommand()
	case "exit", "quit":
		cli.Stop()
	default:
		fmt.Fprintf(cli.out, "未知命令: %s\n", command)
		fmt.Fprintln(cli.out, "输入 'help' 查看可用命令")
	}
}

// showHelp 显示帮助信息
func (cli *CLI) showHelp() {
	fmt.Fprintln(cli.out, "可用命令:")
	fmt.Fprintln(cli.out, "  help                    - 显示帮助信息")
	fmt.Fprintln(cli.out, "  show routes             - 显示路由表")
	fmt.Fprintln(cli.out, "  show arp                - 显示静态ARP表")
	fmt.Fprintln(cli.out, "  show mac                - 显示MAC地址表")
	fmt.Fprintln(cli.out, "  show interfaces         - 显示接口信息")
	fmt.Fprintln(cli.out, "  show config             - 显示配置")
	fmt.Fprintln(cli.out, "  show stats              - 显示统计信息")
	fmt.Fprintln(cli.out, "  lookup <ip>             - 查询目的地址的转发路径")
	fmt.Fprintln(cli.out, "  save                    - 保存路由表和ARP表到存储")
	fmt.Fprintln(cli.out, "  reload                  - 重新加载路由表和ARP表")
	fmt.Fprintln(cli.out, "  exit/quit               - 退出CLI")
}

// handleShowCommand 处理show命令
func (cli *CLI) handleShowCommand(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(cli.out, "用法: show <routes|arp|mac|interfaces|config|stats>")
		return
	}

	switch args[0] {
	case "routes":
		cli.showRoutes()
	case "arp":
		cli.showARP()
	case "mac":
		cli.showMAC()
	case "interfaces":
		cli.showInterfaces()
	case "config":
		cli.showConfig()
	case "stats":
		cli.showStats()
	default:
		fmt.Fprintf(cli.out, "未知的show子命令: %s\n", args[0])
	}
}

func (cli *CLI) requireRouter() bool {
	if cli.device.Tables() == nil {
		fmt.Fprintln(cli.out, "该命令只适用于路由器")
		return false
	}
	return true
}

// showRoutes 显示路由表
func (cli *CLI) showRoutes() {
	if !cli.requireRouter() {
		return
	}
	snap := cli.device.Tables().Snapshot()

	fmt.Fprintf(cli.out, "路由表 (版本 %d, 来源 %s):\n", snap.Generation, snap.Source)
	if err := routing.FormatRoutes(cli.out, snap.Routes); err != nil {
		fmt.Fprintf(cli.out, "输出路由表失败: %v\n", err)
	}
}

// showARP 显示静态ARP表
func (cli *CLI) showARP() {
	if !cli.requireRouter() {
		return
	}
	snap := cli.device.Tables().Snapshot()

	fmt.Fprintf(cli.out, "ARP表 (版本 %d):\n", snap.Generation)
	if err := arp.FormatEntries(cli.out, snap.ARP); err != nil {
		fmt.Fprintf(cli.out, "输出ARP表失败: %v\n", err)
	}
}

// showMAC 显示MAC地址表
func (cli *CLI) showMAC() {
	table := cli.device.MACTable()
	if table == nil {
		fmt.Fprintln(cli.out, "该命令只适用于交换机")
		return
	}

	now := time.Now()
	fmt.Fprintf(cli.out, "MAC地址表 (老化时间 %v):\n", table.Timeout())
	tw := tabwriter.NewWriter(cli.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "MAC地址\t接口\t空闲时间")
	for _, e := range table.Entries() {
		fmt.Fprintf(tw, "%s\t%s\t%v\n", e.MAC, e.Interface, now.Sub(e.LastSeen).Truncate(time.Millisecond))
	}
	_ = tw.Flush()
}

// showInterfaces 显示接口信息
func (cli *CLI) showInterfaces() {
	fmt.Fprintln(cli.out, "接口信息:")
	tw := tabwriter.NewWriter(cli.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "接口\tIP地址\tMAC地址")
	for _, iface := range cli.device.Interfaces().Interfaces() {
		ipAddr := "未配置"
		if iface.IP.IsValid() {
			ipAddr = iface.IP.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", iface.Name, ipAddr, iface.MAC)
	}
	_ = tw.Flush()
}

// showConfig 显示配置
func (cli *CLI) showConfig() {
	cfg := cli.device.Config()

	fmt.Fprintf(cli.out, "主机名: %s\n", cfg.Hostname)
	fmt.Fprintf(cli.out, "角色: %s\n", cfg.Role)
	fmt.Fprintf(cli.out, "日志级别: %s\n", cfg.Log.Level)
	if cfg.Role == config.RoleRouter {
		fmt.Fprintf(cli.out, "表来源: %s\n", cfg.Tables.Source)
		fmt.Fprintf(cli.out, "重算校验和: %v\n", cfg.Router.RecomputeChecksum)
		fmt.Fprintf(cli.out, "下一跳缓存: %v\n", cfg.Router.CacheTTL)
	} else {
		fmt.Fprintf(cli.out, "MAC老化时间: %v\n", cfg.Switch.EntryTimeout)
		fmt.Fprintf(cli.out, "老化扫描周期: %v\n", cfg.Switch.SweepInterval)
	}
	fmt.Fprintf(cli.out, "指标服务: %v\n", cfg.Metrics.Enabled)
}

// showStats 显示统计信息
func (cli *CLI) showStats() {
	fmt.Fprintln(cli.out, "接口统计:")
	tw := tabwriter.NewWriter(cli.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "接口\t接收\t发送\t发送错误")
	for _, s := range cli.device.Interfaces().Stats() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", s.Name, s.RxFrames, s.TxFrames, s.TxErrors)
	}
	_ = tw.Flush()

	if r := cli.device.Router(); r != nil {
		stats := r.Stats()
		fmt.Fprintln(cli.out, "转发统计:")
		fmt.Fprintf(cli.out, "  接收: %d\n", stats.PacketsReceived)
		fmt.Fprintf(cli.out, "  转发: %d\n", stats.PacketsForwarded)
		fmt.Fprintf(cli.out, "  丢弃: %d\n", stats.PacketsDropped)
		reasons := make([]forwarding.DropReason, 0, len(stats.Drops))
		for reason := range stats.Drops {
			reasons = append(reasons, reason)
		}
		sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
		for _, reason := range reasons {
			fmt.Fprintf(cli.out, "    %s: %d\n", reason, stats.Drops[reason])
		}
		fmt.Fprintf(cli.out, "  缓存命中/未命中: %d/%d\n", stats.CacheHits, stats.CacheMisses)
	}
	if sw := cli.device.Switch(); sw != nil {
		stats := sw.Stats()
		fmt.Fprintln(cli.out, "交换统计:")
		fmt.Fprintf(cli.out, "  单播: %d\n", stats.Unicast)
		fmt.Fprintf(cli.out, "  泛洪: %d\n", stats.Flooded)
		fmt.Fprintf(cli.out, "  丢弃: %d\n", stats.Dropped)
		fmt.Fprintf(cli.out, "  MAC表条目: %d\n", cli.device.MACTable().Size())
	}
}

// handleLookupCommand 查询目的地址的路由、下一跳和出接口
func (cli *CLI) handleLookupCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(cli.out, "用法: lookup <目的IP>")
		return
	}
	r := cli.device.Router()
	if r == nil {
		fmt.Fprintln(cli.out, "该命令只适用于路由器")
		return
	}

	dst, err := netip.ParseAddr(args[0])
	if err != nil || !dst.Is4() {
		fmt.Fprintf(cli.out, "错误: 无效的IPv4地址 %s\n", args[0])
		return
	}

	route, nextHop, mac, reason := r.LookupNextHop(dst)
	switch reason {
	case forwarding.DropNone:
		fmt.Fprintf(cli.out, "✅ %s -> %s 经 %s (下一跳MAC %s)\n", dst, route.Interface, nextHop, mac)
		fmt.Fprintf(cli.out, "  匹配路由: %s [%s]\n", route.Destination, route.Type())
	case forwarding.DropLocalDestination:
		fmt.Fprintf(cli.out, "%s 是本机接口地址，不转发\n", dst)
	case forwarding.DropNoRoute:
		fmt.Fprintf(cli.out, "❌ 未找到到 %s 的路由\n", dst)
	case forwarding.DropNoARP:
		fmt.Fprintf(cli.out, "❌ 路由 %s 的下一跳 %s 没有ARP条目\n", route.Destination, nextHop)
	default:
		fmt.Fprintf(cli.out, "❌ 无法转发到 %s: %s\n", dst, reason)
	}
}

// handleSaveCommand 处理save命令
func (cli *CLI) handleSaveCommand() {
	if err := cli.device.Save(context.Background()); err != nil {
		fmt.Fprintf(cli.out, "保存失败: %v\n", err)
	} else {
		fmt.Fprintln(cli.out, "路由表和ARP表已保存")
	}
}

// handleReloadCommand 处理reload命令
func (cli *CLI) handleReloadCommand() {
	if err := cli.device.Reload(context.Background()); err != nil {
		fmt.Fprintf(cli.out, "重新加载失败，继续使用原有表: %v\n", err)
	} else {
		fmt.Fprintf(cli.out, "已重新加载，当前版本 %d\n", cli.device.Tables().Snapshot().Generation)
	}
}

// createCompleter 创建自动补全器
func (cli *CLI) createCompleter() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("show",
			readline.PcItem("routes"),
			readline.PcItem("arp"),
			readline.PcItem("mac"),
			readline.PcItem("interfaces"),
			readline.PcItem("config"),
			readline.PcItem("stats"),
		),
		readline.PcItem("lookup"),
		readline.PcItem("save"),
		readline.PcItem("reload"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	)
}
