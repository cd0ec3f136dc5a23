package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/parent-coach/backend/internal/audio"
	"github.com/zhouzirui/parent-coach/backend/internal/config"
	"github.com/zhouzirui/parent-coach/backend/internal/model/profile"
	"github.com/zhouzirui/parent-coach/backend/internal/service/ai"
	"github.com/zhouzirui/parent-coach/backend/internal/service/speech"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	mode := flag.String("mode", "", "测试模式: chat、tts 或 decode")
	text := flag.String("text", "", "chat: 家长的问题; tts: 待朗读文本")
	name := flag.String("name", "小明", "chat 模式使用的孩子姓名")
	age := flag.Int("age", 5, "chat 模式使用的孩子年龄 (0-18)")
	gender := flag.String("gender", "other", "chat 模式使用的孩子性别: boy, girl, other")
	inputPath := flag.String("in", "", "decode 模式的 base64 PCM16 输入文件")
	outputPath := flag.String("out", "", "输出 WAV 文件路径 (默认根据时间生成)")
	timeout := flag.Duration("timeout", 60*time.Second, "请求超时时间")

	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "chat":
		runChat(ctx, cfg, *text, profile.Input{Name: *name, Age: *age, Gender: profile.Gender(*gender)})
	case "tts":
		runTTS(ctx, cfg, *text, *outputPath)
	case "decode":
		runDecode(*inputPath, *outputPath)
	default:
		flag.Usage()
		log.Fatal("请通过 -mode=chat、-mode=tts 或 -mode=decode 指定测试模式")
	}
}

func runChat(ctx context.Context, cfg *config.Config, text string, input profile.Input) {
	if strings.TrimSpace(text) == "" {
		log.Fatal("chat 模式需要通过 -text 提供问题")
	}

	child, err := profile.New(input)
	if err != nil {
		log.Fatalf("孩子档案无效: %v", err)
	}

	provider := ai.New(ctx, cfg.AI)
	provider.InitializeSession(ctx, child)

	log.Printf("开始对话测试: backend=%s child=%s age=%d", provider.Backend(), child.Name, child.Age)
	started := time.Now()

	reply, err := provider.SendMessage(ctx, text)
	if err != nil {
		log.Printf("对话调用失败 kind=%s: %v", ai.KindOf(err), err)
		if reply == "" {
			reply = ai.UserMessage(err)
		}
	}

	fmt.Println(reply)
	log.Printf("对话完成: 耗时=%s 长度=%d", time.Since(started).Round(time.Millisecond), len(reply))
}

func runTTS(ctx context.Context, cfg *config.Config, text, outputPath string) {
	if strings.TrimSpace(text) == "" {
		log.Fatal("TTS 模式需要通过 -text 提供待合成文本")
	}

	provider := ai.New(ctx, cfg.AI)

	var narrator speech.Narrator
	if cfg.Speech.NativeEnabled {
		if native, err := speech.NewNativeNarrator(cfg.Speech.NativeCommand); err == nil {
			narrator = native
		}
	}
	svc := speech.NewService(provider, narrator)

	finished := make(chan error, 1)
	result, err := svc.Speak(ctx, text, func(err error) { finished <- err })
	if err != nil {
		log.Fatalf("TTS 调用失败: %v", err)
	}

	if result.Narrated {
		log.Printf("已交由系统朗读: %q", result.Text)
		if err := <-finished; err != nil {
			log.Fatalf("系统朗读失败: %v", err)
		}
		log.Println("系统朗读完成")
		return
	}

	writeWAV(outputPath, result.Samples, result.SampleRate)
}

func runDecode(inputPath, outputPath string) {
	if inputPath == "" {
		log.Fatal("decode 模式需要通过 -in 指定 base64 PCM16 文件")
	}

	raw, err := os.ReadFile(inputPath)
	if err != nil {
		log.Fatalf("读取输入文件失败: %v", err)
	}

	samples, err := audio.DecodePCM16Base64(strings.TrimSpace(string(raw)))
	if err != nil {
		log.Fatalf("解码失败: %v", err)
	}

	writeWAV(outputPath, samples, audio.SampleRate)
}

func writeWAV(outputPath string, samples []float32, sampleRate int) {
	if outputPath == "" {
		outputPath = fmt.Sprintf("coach-speech-%d.wav", time.Now().Unix())
	}

	if err := os.WriteFile(outputPath, audio.EncodeWAV(samples, sampleRate), 0o644); err != nil {
		log.Fatalf("写入音频文件失败: %v", err)
	}

	seconds := float64(len(samples)) / float64(sampleRate)
	log.Printf("音频已写入 %s: samples=%d 时长=%.2fs", outputPath, len(samples), seconds)
}
