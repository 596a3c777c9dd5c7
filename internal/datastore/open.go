package datastore

import (
	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
)

// Open creates and initializes the manager selected by settings.
func Open(settings *conf.DatabaseSettings) (Manager, error) {
	log := GetLogger()

	var (
		m   Manager
		err error
	)
	switch settings.Type {
	case conf.DBTypeMySQL:
		m, err = NewMySQLManager(&MySQLConfig{
			Host:               settings.MySQL.Host,
			Port:               settings.MySQL.Port,
			Username:           settings.MySQL.Username,
			Password:           settings.MySQL.Password,
			Database:           settings.MySQL.Database,
			SlowQueryThreshold: settings.SlowQueryThreshold,
		})
	case conf.DBTypeSQLite:
		m, err = NewSQLiteManager(Config{
			Path:               settings.SQLite.Path,
			SlowQueryThreshold: settings.SlowQueryThreshold,
		})
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, err
	}

	if err := m.Initialize(); err != nil {
		_ = m.Close()
		return nil, err
	}

	log.Info("database ready",
		logger.String("type", settings.Type),
		logger.String("location", m.Path()))
	return m, nil
}
