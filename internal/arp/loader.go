package arp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"

	"go.uber.org/multierr"
)

// ErrMalformedEntry ARP文件中存在无法解析的行
var ErrMalformedEntry = errors.New("ARP条目格式错误")

// ParseEntries 解析静态ARP文件
//
// 每行一条映射：
//
//	10.0.0.5 02:00:00:00:00:05
//
// 空行和 # 开头的注释行被忽略，任意一行错误都会导致整体失败。
func ParseEntries(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		errs    error
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseLine(line)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("第%d行 %q: %w", lineNo, line, err))
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("读取ARP文件失败: %w", err))
	}
	if errs != nil {
		return nil, errs
	}
	return entries, nil
}

func parseLine(line string) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Entry{}, fmt.Errorf("%w: 需要2列，实际%d列", ErrMalformedEntry, len(fields))
	}

	ip, err := netip.ParseAddr(fields[0])
	if err != nil || !ip.Is4() {
		return Entry{}, fmt.Errorf("%w: 无效IPv4地址 %s", ErrMalformedEntry, fields[0])
	}

	mac, err := net.ParseMAC(fields[1])
	if err != nil || len(mac) != 6 {
		return Entry{}, fmt.Errorf("%w: 无效MAC地址 %s", ErrMalformedEntry, fields[1])
	}

	return Entry{IPAddress: ip, MACAddress: mac}, nil
}
