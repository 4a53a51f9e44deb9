package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
server:
  port: "8080"
  metrics_port: "9090"

workflow:
  readability_threshold: 65
  max_retries: 4
  auto_run: true
  timeout_seconds: 45
  writing_mode: "academic"
  target_word_count: 1200

llm:
  provider: "anthropic"
  model: "claude-sonnet"
  temperature: 0.2
  max_tokens: 1500
  timeout: "45s"

cache:
  url: "redis://localhost:6379"

logging:
  level: "info"
  format: "json"

api:
  allowed_origins:
    - "https://example.com"
`
				err := os.WriteFile(configFile, []byte(validConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				config, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(config).NotTo(BeNil())

				Expect(config.Server.Port).To(Equal("8080"))
				Expect(config.Server.MetricsPort).To(Equal("9090"))

				Expect(config.Workflow.ReadabilityThreshold).To(Equal(65.0))
				Expect(config.Workflow.MaxRetries).To(Equal(4))
				Expect(config.Workflow.AutoRun).To(BeTrue())
				Expect(config.Workflow.TimeoutSeconds).To(Equal(45))
				Expect(config.Workflow.WritingMode).To(Equal("academic"))
				Expect(config.Workflow.TargetWordCount).To(Equal(1200))

				Expect(config.LLM.Provider).To(Equal("anthropic"))
				Expect(config.LLM.Model).To(Equal("claude-sonnet"))
				Expect(config.LLM.Temperature).To(Equal(float32(0.2)))
				Expect(config.LLM.MaxTokens).To(Equal(1500))
				Expect(config.LLM.Timeout).To(Equal(45 * time.Second))

				Expect(config.Cache.URL).To(Equal("redis://localhost:6379"))

				Expect(config.Logging.Level).To(Equal("info"))
				Expect(config.Logging.Format).To(Equal("json"))

				Expect(config.API.AllowedOrigins).To(ContainElement("https://example.com"))
			})
		})

		Context("when config file has minimal content", func() {
			BeforeEach(func() {
				minimalConfig := `
server:
  port: "3000"
`
				err := os.WriteFile(configFile, []byte(minimalConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load with defaults for missing values", func() {
				config, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(config.Server.Port).To(Equal("3000"))
				Expect(config.Workflow.ReadabilityThreshold).To(Equal(70.0))
				Expect(config.Workflow.MaxRetries).To(Equal(3))
				Expect(config.Workflow.WritingMode).To(Equal("blog"))
				Expect(config.LLM.Provider).To(Equal("mock"))
			})
		})

		Context("when config file does not exist", func() {
			It("should return an error", func() {
				_, err := Load("/nonexistent/config.yaml")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when config file has invalid YAML", func() {
			BeforeEach(func() {
				invalidConfig := `
server:
  port: "8080"
  invalid_yaml: [
workflow:
  writing_mode: "blog"
`
				err := os.WriteFile(configFile, []byte(invalidConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})

		Context("when config has invalid duration formats", func() {
			BeforeEach(func() {
				invalidDurationConfig := `
server:
  port: "8080"

llm:
  provider: "anthropic"
  model: "test"
  timeout: "invalid-duration"
`
				err := os.WriteFile(configFile, []byte(invalidDurationConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})
	})

	Describe("validate", func() {
		var config *Config

		BeforeEach(func() {
			config = &Config{
				Server: ServerConfig{
					Port:        "8080",
					MetricsPort: "9090",
				},
				Workflow: WorkflowConfig{
					ReadabilityThreshold: 70,
					MaxRetries:           3,
					WritingMode:          "blog",
					TargetWordCount:      800,
				},
				LLM: LLMConfig{
					Provider:    "anthropic",
					Model:       "claude-sonnet",
					Temperature: 0.3,
					MaxTokens:   500,
				},
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
				},
			}
		})

		Context("when config is valid", func() {
			It("should pass validation", func() {
				err := validate(config)
				Expect(err).NotTo(HaveOccurred())
			})
		})

		Context("when LLM provider is invalid", func() {
			BeforeEach(func() {
				config.LLM.Provider = "invalid"
			})

			It("should return validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("unsupported LLM provider"))
			})
		})

		Context("when LLM model is missing for a non-mock provider", func() {
			BeforeEach(func() {
				config.LLM.Model = ""
			})

			It("should return validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("LLM model is required"))
			})
		})

		Context("when LLM model is missing for the mock provider", func() {
			BeforeEach(func() {
				config.LLM.Provider = "mock"
				config.LLM.Model = ""
			})

			It("should pass validation", func() {
				err := validate(config)
				Expect(err).NotTo(HaveOccurred())
			})
		})

		Context("when LLM temperature is out of range", func() {
			BeforeEach(func() {
				config.LLM.Temperature = 1.5
			})

			It("should return validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("LLM temperature must be between 0.0 and 1.0"))
			})
		})

		Context("when LLM max tokens is invalid", func() {
			BeforeEach(func() {
				config.LLM.MaxTokens = 0
			})

			It("should return validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("LLM max tokens must be greater than 0"))
			})
		})

		Context("when readability threshold is out of range", func() {
			BeforeEach(func() {
				config.Workflow.ReadabilityThreshold = 150
			})

			It("should return validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("readability threshold must be between 0 and 100"))
			})
		})

		Context("when max retries is invalid", func() {
			BeforeEach(func() {
				config.Workflow.MaxRetries = 0
			})

			It("should return validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("max retries must be at least 1"))
			})
		})

		Context("when writing mode is invalid", func() {
			BeforeEach(func() {
				config.Workflow.WritingMode = "haiku"
			})

			It("should return validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("unsupported writing mode"))
			})
		})
	})

	Describe("loadFromEnv", func() {
		var config *Config

		BeforeEach(func() {
			config = &Config{}
			os.Clearenv()
		})

		Context("when environment variables are set", func() {
			BeforeEach(func() {
				os.Setenv("LLM_PROVIDER", "anthropic")
				os.Setenv("LLM_MODEL", "test-model")
				os.Setenv("LLM_API_KEY", "test-key")
				os.Setenv("SERVER_PORT", "3000")
				os.Setenv("METRICS_PORT", "9999")
				os.Setenv("LOG_LEVEL", "debug")
				os.Setenv("AUTO_RUN", "true")
			})

			AfterEach(func() {
				os.Clearenv()
			})

			It("should load values from environment", func() {
				err := loadFromEnv(config)
				Expect(err).NotTo(HaveOccurred())

				Expect(config.LLM.Provider).To(Equal("anthropic"))
				Expect(config.LLM.Model).To(Equal("test-model"))
				Expect(config.LLM.APIKey).To(Equal("test-key"))
				Expect(config.Server.Port).To(Equal("3000"))
				Expect(config.Server.MetricsPort).To(Equal("9999"))
				Expect(config.Logging.Level).To(Equal("debug"))
				Expect(config.Workflow.AutoRun).To(BeTrue())
			})
		})

		Context("when no environment variables are set", func() {
			It("should not modify config", func() {
				originalConfig := *config
				err := loadFromEnv(config)
				Expect(err).NotTo(HaveOccurred())
				Expect(*config).To(Equal(originalConfig))
			})
		})

		Context("when AUTO_RUN is not a valid boolean", func() {
			BeforeEach(func() {
				os.Setenv("AUTO_RUN", "not-a-bool")
			})

			AfterEach(func() {
				os.Clearenv()
			})

			It("should return an error", func() {
				err := loadFromEnv(config)
				Expect(err).To(HaveOccurred())
			})
		})
	})
})
