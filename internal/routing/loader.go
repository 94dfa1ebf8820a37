package routing

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"text/tabwriter"

	"go.uber.org/multierr"
	"go4.org/netipx"
)

// ErrMalformedRoute 路由文件中存在无法解析的行
var ErrMalformedRoute = errors.New("路由条目格式错误")

// LineError 某一行的解析错误
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("第%d行 %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ParseRoutes 解析静态路由文件
//
// 每行一条路由：
//
//	目标网络 网关 子网掩码 出接口
//	10.0.0.0 0.0.0.0 255.255.255.0 eth1
//	0.0.0.0 192.168.1.1 0.0.0.0 eth2
//
// 网关为 0.0.0.0 表示直连，也可以省略网关只写三列。
// 空行和 # 开头的注释行被忽略。known 不为 nil 时出接口必须是已知接口。
// 任意一行格式错误都会导致整体失败，所有错误行一并返回。
func ParseRoutes(r io.Reader, known func(string) bool) ([]Route, error) {
	var (
		routes []Route
		errs   error
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		route, err := parseRouteLine(line, known)
		if err != nil {
			errs = multierr.Append(errs, &LineError{Line: lineNo, Text: line, Err: err})
			continue
		}
		routes = append(routes, route)
	}
	if err := scanner.Err(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("读取路由文件失败: %w", err))
	}
	if errs != nil {
		return nil, errs
	}
	return routes, nil
}

func parseRouteLine(line string, known func(string) bool) (Route, error) {
	fields := strings.Fields(line)

	var dest, gw, mask, iface string
	switch len(fields) {
	case 4:
		dest, gw, mask, iface = fields[0], fields[1], fields[2], fields[3]
	case 3:
		dest, mask, iface = fields[0], fields[1], fields[2]
	default:
		return Route{}, fmt.Errorf("%w: 需要3或4列，实际%d列", ErrMalformedRoute, len(fields))
	}

	destAddr, err := parseIPv4(dest)
	if err != nil {
		return Route{}, fmt.Errorf("%w: 目标网络: %v", ErrMalformedRoute, err)
	}

	prefix, err := parseMask(destAddr, mask)
	if err != nil {
		return Route{}, err
	}

	route := Route{
		Destination: prefix,
		Gateway:     netip.IPv4Unspecified(),
		Interface:   iface,
	}
	if gw != "" {
		if route.Gateway, err = parseIPv4(gw); err != nil {
			return Route{}, fmt.Errorf("%w: 网关: %v", ErrMalformedRoute, err)
		}
	}

	if known != nil && !known(iface) {
		return Route{}, fmt.Errorf("%w: 未知接口 %s", ErrMalformedRoute, iface)
	}
	return route, nil
}

// parseMask 校验点分十进制子网掩码并与目标地址组合成前缀
// 掩码必须是连续的1后跟连续的0
func parseMask(dest netip.Addr, mask string) (netip.Prefix, error) {
	maskAddr, err := parseIPv4(mask)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: 子网掩码: %v", ErrMalformedRoute, err)
	}

	m := maskAddr.As4()
	ipNet := &net.IPNet{
		IP:   dest.AsSlice(),
		Mask: net.IPv4Mask(m[0], m[1], m[2], m[3]),
	}
	prefix, ok := netipx.FromStdIPNet(ipNet)
	if !ok {
		return netip.Prefix{}, fmt.Errorf("%w: 子网掩码 %s 不连续", ErrMalformedRoute, mask)
	}
	return prefix.Masked(), nil
}

func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%s 不是IPv4地址", s)
	}
	return addr, nil
}

// FormatRoutes 以表格形式输出路由表，供控制台和 check 命令使用
func FormatRoutes(w io.Writer, t *Table) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "目标网络\t网关\t出接口\t类型")
	for _, r := range t.Routes() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Destination, r.gatewayString(), r.Interface, r.Type())
	}
	return tw.Flush()
}
