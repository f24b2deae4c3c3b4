package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"
)

const launchdPlistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>

	<key>ProgramArguments</key>
	<array>
		<string>{{.ExecPath}}</string>
		<string>--config</string>
		<string>{{.ConfigPath}}</string>
	</array>

	<key>WorkingDirectory</key>
	<string>{{.WorkDir}}</string>

	<key>RunAtLoad</key>
	<true/>

	<key>KeepAlive</key>
	<dict>
		<key>SuccessfulExit</key>
		<false/>
		<key>Crashed</key>
		<true/>
	</dict>

	<key>StandardOutPath</key>
	<string>{{.LogDir}}/growthkernel.log</string>

	<key>StandardErrorPath</key>
	<string>{{.LogDir}}/growthkernel.error.log</string>

	<key>EnvironmentVariables</key>
	<dict>
		<key>PATH</key>
		<string>/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin</string>
	</dict>

	<key>ProcessType</key>
	<string>Background</string>

	<key>Nice</key>
	<integer>0</integer>

	<key>ThrottleInterval</key>
	<integer>5</integer>
</dict>
</plist>
`

type launchdConfig struct {
	Label      string
	ExecPath   string
	ConfigPath string
	WorkDir    string
	LogDir     string
}

func installLaunchd() error {
	fmt.Println("installing launchd service...")

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("get executable path: %w", err)
	}
	execPath, _ = filepath.Abs(execPath)

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	home, _ := os.UserHomeDir()
	configPath := filepath.Join(workDir, "growthkernel.yaml")
	logDir := filepath.Join(home, ".growthkernel", "logs")

	if !fileExists(configPath) {
		altConfig := filepath.Join(home, ".growthkernel", "growthkernel.yaml")
		if fileExists(altConfig) {
			configPath = altConfig
		}
	}

	os.MkdirAll(logDir, 0755)

	cfg := launchdConfig{
		Label:      "com.clawinfra.growthkernel",
		ExecPath:   execPath,
		ConfigPath: configPath,
		WorkDir:    workDir,
		LogDir:     logDir,
	}

	tmpl, err := template.New("launchd").Parse(launchdPlistTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	isRoot := os.Geteuid() == 0
	var plistPath string

	if isRoot {
		plistPath = "/Library/LaunchDaemons/com.clawinfra.growthkernel.plist"
	} else {
		plistPath = filepath.Join(home, "Library", "LaunchAgents", "com.clawinfra.growthkernel.plist")
		os.MkdirAll(filepath.Dir(plistPath), 0755)
	}

	f, err := os.Create(plistPath)
	if err != nil {
		return fmt.Errorf("create plist: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, cfg); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}

	fmt.Printf("launchd plist installed: %s\n", plistPath)

	loadCmd := exec.Command("launchctl", "load", plistPath)
	if err := loadCmd.Run(); err != nil {
		fmt.Printf("warning: launchctl load failed: %v\n", err)
		fmt.Println("   you may need to load it manually:")
		fmt.Printf("   launchctl load %s\n", plistPath)
	} else {
		fmt.Println("service loaded and will start on boot")
	}

	fmt.Println("\nmanagement commands:")
	if isRoot {
		fmt.Println("   sudo launchctl start com.clawinfra.growthkernel")
		fmt.Println("   sudo launchctl stop com.clawinfra.growthkernel")
		fmt.Println("   sudo launchctl unload " + plistPath)
	} else {
		fmt.Println("   launchctl start com.clawinfra.growthkernel")
		fmt.Println("   launchctl stop com.clawinfra.growthkernel")
		fmt.Println("   launchctl unload " + plistPath)
	}
	fmt.Printf("\nlogs: %s\n", logDir)

	return nil
}

func uninstallLaunchd() error {
	fmt.Println("uninstalling launchd service...")

	isRoot := os.Geteuid() == 0
	var plistPath string

	if isRoot {
		plistPath = "/Library/LaunchDaemons/com.clawinfra.growthkernel.plist"
	} else {
		home, _ := os.UserHomeDir()
		plistPath = filepath.Join(home, "Library", "LaunchAgents", "com.clawinfra.growthkernel.plist")
	}

	unloadCmd := exec.Command("launchctl", "unload", plistPath)
	unloadCmd.Run()

	if err := os.Remove(plistPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove plist: %w", err)
	}

	fmt.Println("launchd service uninstalled")
	return nil
}
