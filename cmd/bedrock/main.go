package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/adrianliechti/wingman-bedrock/config"
	"github.com/adrianliechti/wingman-bedrock/pkg/otel"
	"github.com/adrianliechti/wingman-bedrock/pkg/provider"

	"github.com/google/jsonschema-go/jsonschema"
)

func main() {
	configFlag := flag.String("config", "config.yaml", "config file")
	modelFlag := flag.String("model", "", "model name")
	schemaFlag := flag.String("schema", "", "json schema file for object generation")
	nameFlag := flag.String("name", "", "object name")

	flag.Parse()

	ctx := context.Background()

	if otel.EnableDebug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	shutdown, err := otel.Setup(ctx, "wingman-bedrock", "dev")

	if err != nil {
		panic(err)
	}

	defer shutdown(ctx)

	cfg, err := config.Parse(*configFlag)

	if err != nil {
		panic(err)
	}

	name := *modelFlag

	if name == "" {
		val, err := selectModel(cfg)

		if err != nil {
			panic(err)
		}

		name = val
	}

	model, err := cfg.Model(name)

	if err != nil {
		panic(err)
	}

	if *schemaFlag != "" {
		schema, err := readSchema(*schemaFlag)

		if err != nil {
			panic(err)
		}

		object(ctx, model, schema, *nameFlag)
		return
	}

	chat(ctx, model)
}

func selectModel(cfg *config.Config) (string, error) {
	reader := bufio.NewReader(os.Stdin)
	output := os.Stdout

	models := cfg.Models()

	if len(models) == 0 {
		return "", fmt.Errorf("no models configured")
	}

	if len(models) == 1 {
		return models[0], nil
	}

	for i, m := range models {
		output.WriteString(fmt.Sprintf("%2d) ", i+1))
		output.WriteString(m)
		output.WriteString("\n")
	}

	output.WriteString(" >  ")
	sel, err := reader.ReadString('\n')

	if err != nil {
		return "", err
	}

	idx, err := strconv.Atoi(strings.TrimSpace(sel))

	if err != nil {
		return "", err
	}

	if idx < 1 || idx > len(models) {
		return "", fmt.Errorf("invalid selection: %d", idx)
	}

	output.WriteString("\n")

	return models[idx-1], nil
}

func readSchema(path string) (*jsonschema.Schema, error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return nil, err
	}

	schema := new(jsonschema.Schema)

	if err := schema.UnmarshalJSON(data); err != nil {
		return nil, err
	}

	return schema, nil
}

func chat(ctx context.Context, model *config.Model) {
	reader := bufio.NewReader(os.Stdin)
	output := os.Stdout

	var messages []provider.Message

LOOP:
	for {
		output.WriteString(">>> ")
		input, err := reader.ReadString('\n')

		if err != nil {
			return
		}

		input = strings.TrimSpace(input)

		if strings.HasPrefix(input, "/") {
			switch strings.ToLower(input) {
			case "/reset":
				messages = nil
				continue LOOP

			default:
				output.WriteString("Unknown command\n")
				continue LOOP
			}
		}

		messages = append(messages, provider.UserMessage(input))

		stream, err := model.Adapter().StreamText(ctx, model.TextRequest(messages))

		if err != nil {
			output.WriteString(err.Error() + "\n")
			continue LOOP
		}

		for chunk, err := range stream.Chunks() {
			if err != nil {
				output.WriteString("\n" + err.Error())
				break
			}

			output.WriteString(chunk)
		}

		stream.Close()

		messages = append(messages, provider.AssistantMessage(stream.Text()))

		usage := stream.Usage()

		output.WriteString("\n")
		output.WriteString(fmt.Sprintf("[%d input / %d output tokens]\n", usage.PromptTokens, usage.CompletionTokens))
		output.WriteString("\n")
	}
}

func object(ctx context.Context, model *config.Model, schema *jsonschema.Schema, name string) {
	reader := bufio.NewReader(os.Stdin)
	output := os.Stdout

	for {
		output.WriteString(">>> ")
		input, err := reader.ReadString('\n')

		if err != nil {
			return
		}

		input = strings.TrimSpace(input)

		messages := []provider.Message{
			provider.UserMessage(input),
		}

		result, err := model.Adapter().GenerateObject(ctx, model.ObjectRequest(messages, schema, name))

		if err != nil {
			output.WriteString(err.Error() + "\n")
			continue
		}

		data, _ := json.MarshalIndent(result.Object, "", "  ")

		output.Write(data)
		output.WriteString("\n")
		output.WriteString(fmt.Sprintf("[%d input / %d output tokens]\n", result.Usage.InputTokens, result.Usage.OutputTokens))
		output.WriteString("\n")
	}
}
