// Package config reads reframe.toml into a Config.
//
// Load starts from Default, overlays the TOML file, expands "~" in paths and
// fills gaps from the environment (REFRAME_API_TOKEN, REFRAME_NTFY_TOPIC,
// HF_TOKEN) before Validate runs. Callers never see a Config that failed
// validation.
package config
