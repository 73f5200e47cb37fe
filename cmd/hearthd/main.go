// hearthd is the host daemon wired with the reference installation: a
// simulated door bell exposed as commands and a temperature probe task.
package main

import (
	"os"
	"time"

	"github.com/hearthd/hearthd/internal/app"
	"github.com/hearthd/hearthd/internal/cli"
	"github.com/hearthd/hearthd/internal/command"
	"github.com/hearthd/hearthd/internal/schedule"
)

func main() {
	root := cli.BuildCLI(setup)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(a *app.App) error {
	bell := newDoorBell(a.Store())
	if err := a.Commands().Register("doorBell", "switchDoorBell",
		[]command.Param{{Name: "onoff"}}, bell.switchDoorBell); err != nil {
		return err
	}
	if err := a.Commands().Register("doorBell", "getCurrentState",
		nil, bell.getCurrentState); err != nil {
		return err
	}

	if err := a.AddTask("basementTemperature", &temperatureTask{},
		schedule.Interval(10*time.Second)); err != nil {
		return err
	}

	// Roll the min/max markers over at midnight.
	daily, err := schedule.Calendar(schedule.Spec{
		StartTime:  "00:00",
		Repetition: schedule.Daily,
	})
	if err != nil {
		return err
	}
	return a.AddTask("dailyRollover", &rolloverTask{}, daily)
}
