package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"mcq-paper/internal/config"
	"mcq-paper/internal/importer"
	"mcq-paper/internal/issues"
	"mcq-paper/internal/logger"
	"mcq-paper/internal/types"
)

// Command line flags
var (
	quizFlag        = flag.String("quiz", "", "Quiz JSON file exported from the backend")
	sampleFlag      = flag.Bool("sample", false, "Build the bundled sample quiz")
	printSampleFlag = flag.Bool("print-sample", false, "Print the sample quiz JSON and exit")
	configFlag      = flag.String("config", "", "Config file path (default ~/.config/mcq-paper/"+config.DefaultConfigFileName+")")
	outputDir       = flag.String("output", "", "Output directory (default from config)")
	nameFlag        = flag.String("name", "", "Base name of the output files (default paper)")
	numberingFlag   = flag.String("numbering", "", "Option numbering style, e.g. A) (a) 1.")
	answerKeyFlag   = flag.String("answer-key", "", "Answer key mode: NONE, KEY_ONLY or KEY_AND_EXPLANATION")
	watermarkFlag   = flag.String("watermark", "", "Watermark text, overrides the imported watermark")
	finishPDFFlag   = flag.String("finish-pdf", "", "PDF printed from the generated HTML to stamp with watermark and footer")
	splitKeyFlag    = flag.Bool("split-key", false, "Split the finished PDF into question and answer key files")
	verboseFlag     = flag.Bool("v", false, "Log to console")
)

// printHelp displays the help information for command line usage.
func printHelp() {
	fmt.Println("MCQ Paper - 将题库 JSON 生成可打印的选择题试卷")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  mcq-paper [选项]")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  --quiz <PATH>          题库 JSON 文件")
	fmt.Println("  --sample               使用内置示例题库")
	fmt.Println("  --print-sample         输出示例题库 JSON")
	fmt.Println("  --config <PATH>        配置文件路径")
	fmt.Println("  --output <DIR>         输出目录")
	fmt.Println("  --name <NAME>          输出文件名 (默认 paper)")
	fmt.Println("  --numbering <STYLE>    选项编号样式, 例如 A) (a) 1.")
	fmt.Println("  --answer-key <MODE>    答案页: NONE, KEY_ONLY, KEY_AND_EXPLANATION")
	fmt.Println("  --watermark <TEXT>     水印文字")
	fmt.Println("  --finish-pdf <PATH>    为打印生成的 PDF 加水印和页脚")
	fmt.Println("  --split-key            将 PDF 拆分为试题和答案两个文件")
	fmt.Println("  -v                     在控制台输出日志")
	fmt.Println("  -h, --help             显示帮助信息")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  mcq-paper --sample --answer-key KEY_AND_EXPLANATION")
	fmt.Println("  mcq-paper --quiz quiz.json --numbering \"(a)\" --output papers")
	fmt.Println("  mcq-paper --quiz quiz.json --finish-pdf printed.pdf --split-key")
}

// getInputFromFlags returns the quiz source selected on the command line.
// Returns an error if both --quiz and --sample are given.
func getInputFromFlags() (string, string, error) {
	switch {
	case *quizFlag != "" && *sampleFlag:
		return "", "", fmt.Errorf("只能指定一个输入源 (--quiz 或 --sample)")
	case *quizFlag != "":
		return *quizFlag, "file", nil
	case *sampleFlag:
		return "", "sample", nil
	}
	return "", "", nil
}

func main() {
	flag.Usage = printHelp
	flag.Parse()

	if *printSampleFlag {
		fmt.Println(importer.SampleJSON())
		return
	}

	input, inputType, err := getInputFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		fmt.Println()
		printHelp()
		os.Exit(1)
	}
	if inputType == "" {
		printHelp()
		os.Exit(1)
	}

	os.Exit(runBuildCLI(input, inputType))
}

// runBuildCLI builds a paper and optionally finishes a printed PDF. It
// returns the process exit code.
func runBuildCLI(input, inputType string) int {
	app, err := NewAppWithConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 无法加载配置: %v\n", err)
		return 1
	}

	// 先初始化日志, startup 的日志才能写入文件
	if err := initLogging(app, *verboseFlag); err != nil {
		fmt.Fprintf(os.Stderr, "警告: 无法初始化日志: %v\n", err)
	}
	defer logger.Close()

	app.startup(context.Background())
	defer app.shutdown(context.Background())

	app.SetStatusCallback(func(s *types.Status) {
		if *verboseFlag && s.Phase != types.PhaseError {
			fmt.Printf("  [%d%%] %s: %s\n", s.Progress, s.Phase, s.Message)
		}
	})

	fmt.Println("=== 生成试卷 ===")
	var quiz *importer.Result
	if inputType == "sample" {
		quiz, err = app.LoadSampleQuiz()
	} else {
		fmt.Printf("题库: %s\n", input)
		quiz, err = app.ImportQuiz(input)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 导入失败: %v\n", err)
		return 1
	}
	fmt.Println(quiz.Message)

	result, err := app.BuildPaper(BuildOptions{
		OutputDir:      *outputDir,
		Name:           *nameFlag,
		NumberingStyle: *numberingFlag,
		AnswerKeyMode:  *answerKeyFlag,
		Watermark:      *watermarkFlag,
		StampPDF:       *finishPDFFlag != "",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 生成失败: %v\n", err)
		return 1
	}

	fmt.Printf("试卷: %s\n", result.HTMLPath)
	fmt.Printf("题目数: %d\n", result.Questions)
	if result.Degraded {
		fmt.Println("警告: 公式渲染器不可用, 公式以源码输出")
	}
	if result.IssuesPath != "" {
		printIssues(app.GetIssues())
		fmt.Printf("问题列表: %s\n", result.IssuesPath)
	}

	if *finishPDFFlag == "" {
		return 0
	}

	info, err := app.FinishPDF(*finishPDFFlag, *finishPDFFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: PDF 处理失败: %v\n", err)
		return 1
	}
	fmt.Printf("PDF: %s (%d 页)\n", info.FilePath, info.PageCount)

	if *splitKeyFlag {
		questionsPath, keyPath, err := app.SplitAnswerKey(*finishPDFFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "错误: 拆分答案失败: %v\n", err)
			return 1
		}
		fmt.Printf("试题: %s\n", questionsPath)
		fmt.Printf("答案: %s\n", keyPath)
	}
	return 0
}

// initLogging loads the configuration and initializes the global logger
// from it. It must run before startup.
func initLogging(app *App, verbose bool) error {
	if err := app.GetConfig().Load(); err != nil {
		fmt.Fprintf(os.Stderr, "警告: 无法加载配置, 使用默认值: %v\n", err)
	}
	logCfg := app.GetConfig().LoggerConfig()
	logCfg.EnableConsole = verbose
	return logger.Init(logCfg)
}

func printIssues(records []*issues.Record) {
	fmt.Printf("发现 %d 个问题:\n", len(records))
	for _, r := range records {
		fmt.Printf("  - %s [%s] %s\n", r.Ref, issues.KindDisplayName(r.Kind), r.Message)
	}
}
