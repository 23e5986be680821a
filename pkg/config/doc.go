// Package config loads env-tagged structs with caarlos0/env, after reading an
// optional .env file with godotenv. Load caches one value per struct type so
// infrastructure packages can each declare their own Config and load it
// independently without re-parsing the environment.
package config
