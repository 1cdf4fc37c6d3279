package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/soyart/gsl/soyutils"
)

// APISource selects where the loaders send explorer API requests.
type APISource int

const (
	// APISourceFixed targets DefaultAPIUrl.
	APISourceFixed APISource = iota
	// APISourceSameOrigin targets APIPath on the origin of the inbound request
	// being served, e.g. an explorer API mounted behind the same reverse proxy.
	APISourceSameOrigin
	// APISourceExternal targets APIUrl.
	APISourceExternal
)

const (
	DefaultLabel      = "explorer-web"
	DefaultListenAddr = ":3000"
	DefaultAPIUrl     = "http://localhost:8080"
	DefaultAPIPath    = "/api"
	DefaultPrefsFile  = "./data/prefs.json"
)

func (s APISource) String() string {
	switch s {
	case APISourceFixed:
		return "fixed"
	case APISourceSameOrigin:
		return "same-origin"
	case APISourceExternal:
		return "external"
	default:
		panic(fmt.Sprintf("bad api source: %d", s))
	}
}

// StorageKind selects the persistent storage behind the preferences.
type StorageKind int

const (
	StorageFile StorageKind = iota
	StorageRedis
	StorageMemory
)

func (k StorageKind) String() string {
	switch k {
	case StorageFile:
		return "file"
	case StorageRedis:
		return "redis"
	case StorageMemory:
		return "memory"
	default:
		panic(fmt.Sprintf("bad storage kind: %d", k))
	}
}

type Config struct {
	Label      string `yaml:"label" json:"label"`
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`

	APISourceConfig string    `yaml:"api_source" json:"-"`
	APISource       APISource `yaml:"-" json:"apiSource"` // Will be parsed based on APISourceConfig
	APIUrl          string    `yaml:"api_url" json:"apiUrl"`
	// Path prefix of the explorer API for APISourceSameOrigin. It must not be
	// the root: the host's own page routes live there.
	APIPath string `yaml:"api_path" json:"apiPath"`

	// Request the API's default block count instead of the numberOfBlocks preference
	OmitBlockCount bool `yaml:"omit_block_count" json:"omitBlockCount"`

	StorageConfig string      `yaml:"storage" json:"-"`
	Storage       StorageKind `yaml:"-" json:"storage"` // Will be parsed based on StorageConfig
	PrefsFile     string      `yaml:"prefs_file" json:"prefsFile"`
	RedisUrl      string      `yaml:"redis_url" json:"redisUrl"`
}

// From reads filename (or $CONF_FILE) and applies env overrides. A missing
// default file is not an error; the zero config plus defaults is used.
func From(filename string) (*Config, error) {
	envFilename, fromEnv := os.LookupEnv("CONF_FILE")
	if fromEnv {
		filename = envFilename
	}

	conf := new(Config)
	if _, err := os.Stat(filename); err == nil || fromEnv {
		conf, err = soyutils.ReadFileYAMLPointer[Config](filename)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", filename)
		}
	}

	if label, found := os.LookupEnv("LABEL"); found {
		conf.Label = label
	}

	if conf.Label == "" {
		conf.Label = DefaultLabel
	}

	if listenAddr, found := os.LookupEnv("LISTEN_ADDR"); found {
		conf.ListenAddr = listenAddr
	}

	if conf.ListenAddr == "" {
		conf.ListenAddr = DefaultListenAddr
	}

	conf.APISource = chooseAPISource(conf.APISourceConfig)

	if source, found := os.LookupEnv("API_SOURCE"); found {
		conf.APISource = chooseAPISource(source)
	}

	// Allow env override for APIUrl
	if apiUrl, found := os.LookupEnv("API_URL"); found {
		conf.APIUrl = apiUrl
	}

	if apiPath, found := os.LookupEnv("API_PATH"); found {
		conf.APIPath = apiPath
	}

	switch conf.APISource {
	case APISourceSameOrigin:
		if conf.APIPath == "" {
			conf.APIPath = DefaultAPIPath
		}

		if !strings.HasPrefix(conf.APIPath, "/") || strings.Trim(conf.APIPath, "/") == "" {
			return nil, fmt.Errorf("api path %s must be a non-root absolute path", conf.APIPath)
		}

	case APISourceExternal:
		if conf.APIUrl == "" {
			return nil, errors.New("empty api url for external api source")
		}

		u, err := url.Parse(conf.APIUrl)
		if err != nil {
			return nil, errors.Wrapf(err, "bad api url %s", conf.APIUrl)
		}

		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("api url %s is not absolute", conf.APIUrl)
		}

	case APISourceFixed:
		conf.APIUrl = DefaultAPIUrl
	}

	if omit, found := os.LookupEnv("OMIT_BLOCK_COUNT"); found {
		switch strings.ToLower(omit) {
		case "1", "true", "yes":
			conf.OmitBlockCount = true
		case "0", "false", "no":
			conf.OmitBlockCount = false

		default:
			return nil, fmt.Errorf("illegal OMIT_BLOCK_COUNT flag: %s", omit)
		}
	}

	conf.Storage = chooseStorage(conf.StorageConfig)

	if storage, found := os.LookupEnv("STORAGE"); found {
		conf.Storage = chooseStorage(storage)
	}

	if prefsFile, found := os.LookupEnv("PREFS_FILE"); found {
		conf.PrefsFile = prefsFile
	}

	// Allow env override for RedisUrl
	if redisUrl, found := os.LookupEnv("REDIS_URL"); found {
		// Strip protocol string
		if strings.Contains(redisUrl, "redis://") {
			urlParts := strings.Split(redisUrl, "redis://")
			if len(urlParts) < 2 {
				return nil, fmt.Errorf("bad REDIS_URL env %s", redisUrl)
			}

			redisUrl = urlParts[1]
		}

		conf.RedisUrl = redisUrl
	}

	switch conf.Storage {
	case StorageFile:
		if conf.PrefsFile == "" {
			conf.PrefsFile = DefaultPrefsFile
		}

	case StorageRedis:
		if conf.RedisUrl == "" {
			return nil, errors.New("empty redis url")
		}
	}

	return conf, nil
}

func chooseAPISource(sourceConfig string) APISource {
	switch strings.ToLower(sourceConfig) {
	case "same-origin", "same_origin", "origin", "relative":
		return APISourceSameOrigin
	case "external", "env", "configured":
		return APISourceExternal
	default:
		return APISourceFixed
	}
}

func chooseStorage(storageConfig string) StorageKind {
	switch strings.ToLower(storageConfig) {
	case "redis":
		return StorageRedis
	case "memory", "mem":
		return StorageMemory
	default:
		return StorageFile
	}
}
