package main

func main() {
	app := mustBootstrap()
	defer app.Close()

	if err := app.Run(); err != nil && !app.stopped(err) {
		panic(err)
	}
}
