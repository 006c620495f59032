package main

var (
	// Version is set during build.
	Version = "dev"
	// BuildTime is set during build.
	BuildTime = "unknown"
)

func main() {
	Execute()
}
