// config_test.go tests config files
package config

import (
	"os"
	"testing"
)

// fileToTest is a relative path to the configuration file to test (ie. corral/cmd/conf.json)
var fileToTest string = "../../cmd/conf.json"

// TestConfig extracts config from a file and checks values loaded
func TestConfig(t *testing.T) {
	// extract configuration
	conf, err := ExtractConfiguration(fileToTest)
	if err != nil {
		t.Errorf("Error reading config file:%e\n", err)
	} else {
		// lets check the port
		if conf.Port != "3030" {
			t.Errorf("config port is not the expected %s", conf.Port)
		}
		// and the swap parameters
		if conf.ChainID != 8453 || conf.SlippageBps != 500 {
			t.Errorf("chain config does not match the expected %d %d", conf.ChainID, conf.SlippageBps)
		}
		if conf.BuyDeadline != 3600 || conf.ExitDeadline != 1200 {
			t.Errorf("deadline windows do not match the expected %d %d", conf.BuyDeadline, conf.ExitDeadline)
		}
	}
}

// TestConfigEnv checks that OS ENV variables override file values
func TestConfigEnv(t *testing.T) {
	os.Setenv("CRL_ENGINE_URL", "http://engine.test:3005")
	os.Setenv("CRL_RELAY_POLLS", "25")
	defer os.Unsetenv("CRL_ENGINE_URL")
	defer os.Unsetenv("CRL_RELAY_POLLS")

	conf, err := ExtractConfiguration(fileToTest)
	if err != nil {
		t.Errorf("Error reading config file:%e\n", err)
	}
	if conf.EngineURL != "http://engine.test:3005" {
		t.Errorf("engine url override failed, got %s", conf.EngineURL)
	}
	if conf.RelayPolls != 25 {
		t.Errorf("relay polls override failed, got %d", conf.RelayPolls)
	}
}
