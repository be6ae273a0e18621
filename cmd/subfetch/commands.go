package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/subfetch/internal/config"
	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/guess"
	"github.com/John-Robertt/subfetch/internal/infra/fsx"
	"github.com/John-Robertt/subfetch/internal/infra/logx"
	"github.com/John-Robertt/subfetch/internal/match"
	"github.com/John-Robertt/subfetch/internal/provider"
	"github.com/John-Robertt/subfetch/internal/videoname"
)

// openSession 读取 cwd 下的 subfetch.json（可选），并为单次命令打开一个 provider Session。
// search/download 不使用 listing 缓存，也不写任何状态文件。
func openSession(cmd *cobra.Command, providerName string, languages []string) (*provider.Session, config.EffectiveConfig, logrus.FieldLogger, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, config.EffectiveConfig{}, nil, err
	}
	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Path:        cwd,
		Provider:    providerName,
		ProviderSet: cmd.Flags().Changed("provider"),
		Languages:   languages,
	})
	if err != nil {
		return nil, config.EffectiveConfig{}, nil, err
	}
	log := logx.New(eff.LogLevel, cmd.ErrOrStderr())
	reg, err := newRegistry(eff, log)
	if err != nil {
		return nil, config.EffectiveConfig{}, nil, err
	}
	p, ok := reg.Get(eff.Provider)
	if !ok {
		return nil, config.EffectiveConfig{}, nil, fmt.Errorf("未注册的 provider：%q", eff.Provider)
	}
	sess, err := provider.Open(p, provider.Options{ProxyURL: eff.ProxyURL, Log: log})
	if err != nil {
		return nil, config.EffectiveConfig{}, nil, err
	}
	return sess, eff, log, nil
}

func newSearchCommand() *cobra.Command {
	var (
		providerName string
		languages    []string
		all          bool
	)
	cmd := &cobra.Command{
		Use:   "search <video>",
		Short: "按视频文件名搜索候选字幕并显示排名",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := videoname.Identify(videoFileFromArg(args[0]), guess.Default)
			if err != nil {
				return err
			}

			sess, eff, _, err := openSession(cmd, providerName, languages)
			if err != nil {
				return err
			}
			defer sess.Close()

			subs, err := sess.ListSubtitles(cmd.Context(), v, eff.Languages)
			if err != nil {
				return err
			}
			ranked := match.Rank(subs, v, guess.Default, guess.EquivalentGroups)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s：%d 个候选\n", v.Query().String(), len(ranked))
			if len(ranked) == 0 {
				return nil
			}
			fmt.Fprintln(out, renderCandidates(v, ranked, all))
			return nil
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "", "字幕站点（默认 greeksubs）")
	cmd.Flags().StringSliceVar(&languages, "language", nil, "字幕语言，逗号分隔（默认 el,en）")
	cmd.Flags().BoolVar(&all, "all", false, "同时显示未达到自动选用阈值的候选")
	return cmd
}

func newDownloadCommand() *cobra.Command {
	var (
		providerName string
		output       string
	)
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "下载指定 ID 的字幕包并输出其中第一个 .srt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, log, err := openSession(cmd, providerName, nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			sub := domain.Subtitle{Provider: sess.Provider().Name(), ID: strings.TrimSpace(args[0])}
			b, err := sess.DownloadSubtitle(cmd.Context(), &sub)
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("字幕包 %s 中没有 .srt 文件", sub.ID)
			}
			return writeOutput(cmd.OutOrStdout(), output, b, log)
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "", "字幕站点（默认 greeksubs）")
	cmd.Flags().StringVarP(&output, "output", "o", "", "写入的文件路径（不覆盖已有文件）；为空或 - 时写到 stdout")
	return cmd
}

func writeOutput(stdout io.Writer, output string, b []byte, log logrus.FieldLogger) error {
	if output == "" || output == "-" {
		_, err := stdout.Write(b)
		return err
	}
	abs, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	if err := fsx.WriteSidecar(filepath.Dir(abs), filepath.Base(abs), b); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("目标已存在，不覆盖：%s", abs)
		}
		return err
	}
	log.WithField("dst", abs).WithField("size", humanize.Bytes(uint64(len(b)))).Info("字幕已写入")
	return nil
}

// videoFileFromArg 把命令行参数（文件路径或纯文本名称）包装为 VideoFile，供识别使用。
func videoFileFromArg(arg string) domain.VideoFile {
	arg = strings.TrimSpace(arg)
	abs, err := filepath.Abs(arg)
	if err != nil {
		abs = arg
	}
	name := filepath.Base(abs)
	ext := filepath.Ext(name)
	return domain.VideoFile{
		AbsPath: abs,
		RelPath: arg,
		Base:    strings.TrimSuffix(name, ext),
		Ext:     ext,
	}
}
