package app

import (
	"time"

	"github.com/nmoller/wapanel/internal/domain"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 5m", func() {
		go a.SchedDeviceStatusTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		a.gormDB.
			Where("opt_time < ? ", time.Now().
				Add(-time.Hour*24*365)).Delete(domain.SysOprLog{})
	})

	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedDeviceStatusTask logs a device fleet snapshot
func (a *Application) SchedDeviceStatusTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	type statusCount struct {
		Status string
		Total  int64
	}
	var counts []statusCount
	err := a.gormDB.Model(&domain.WaDevice{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		zap.L().Error("device status snapshot failed", zap.Error(err))
		return
	}
	for _, c := range counts {
		zap.L().Info("device status snapshot",
			zap.String("status", c.Status),
			zap.Int64("total", c.Total))
	}
}
