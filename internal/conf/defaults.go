// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Database backends
const (
	DBTypeSQLite = "sqlite"
	DBTypeMySQL  = "mysql"
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "segmentlab")
	v.SetDefault("main.log.default_level", "info")
	v.SetDefault("main.log.timezone", "Local")
	v.SetDefault("main.log.console.enabled", true)
	v.SetDefault("main.log.console.level", "info")
	v.SetDefault("main.log.file_output.enabled", false)
	v.SetDefault("main.log.file_output.path", "logs/segmentlab.log")
	v.SetDefault("main.log.file_output.level", "debug")
	v.SetDefault("main.log.file_output.max_size", 100)
	v.SetDefault("main.log.file_output.max_age", 30)
	v.SetDefault("main.log.file_output.max_rotated_files", 10)

	v.SetDefault("storage.datadir", "data")
	v.SetDefault("storage.uploadsdir", "uploads")
	v.SetDefault("storage.resultsdir", "results")
	v.SetDefault("storage.tempmodelsdir", "temp_models")
	v.SetDefault("storage.trainingrunsdir", "training_runs")
	v.SetDefault("storage.locksdir", "locks")
	v.SetDefault("storage.minfreepercent", 5.0)

	v.SetDefault("database.type", DBTypeSQLite)
	v.SetDefault("database.sqlite.path", "segmentlab.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", "3306")
	v.SetDefault("database.mysql.database", "segmentlab")
	v.SetDefault("database.slowquerythreshold", 200*time.Millisecond)

	v.SetDefault("segmentation.segmentduration", 2.0)
	v.SetDefault("segmentation.overlap", 50.0)
	v.SetDefault("segmentation.samplerate", 0)
	v.SetDefault("segmentation.channels", "mono")
	v.SetDefault("segmentation.spectype", "mel")
	v.SetDefault("segmentation.maxsegments", 100000)

	v.SetDefault("codec.ffmpegpath", "")
	v.SetDefault("codec.ffprobepath", "")
	v.SetDefault("codec.timeout", 60*time.Second)
	v.SetDefault("codec.displaywidth", 800)
	v.SetDefault("codec.displayheight", 400)
	v.SetDefault("codec.trainingsize", 224)

	v.SetDefault("training.serviceurl", "http://127.0.0.1:8500")
	v.SetDefault("training.epochs", 50)
	v.SetDefault("training.imagesize", 224)
	v.SetDefault("training.defaultmodel", "yolov8n-cls.pt")
	v.SetDefault("training.pollinterval", 2*time.Second)

	v.SetDefault("inference.threads", 0)
	v.SetDefault("inference.onnxruntimepath", "")

	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.capacity", 100)

	v.SetDefault("webserver.listen", ":8080")
	v.SetDefault("webserver.uploadlimitmb", 512)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.clientid", "segmentlab")
	v.SetDefault("mqtt.topic", "segmentlab")

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})

	v.SetDefault("telemetry.enabled", false)
}
