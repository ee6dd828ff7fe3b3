package store

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sensebox (
	sensebox_id VARCHAR(50) PRIMARY KEY,
	name VARCHAR(255),
	created_at TIMESTAMP,
	description TEXT,
	exposure VARCHAR(50),
	last_measurement_at TIMESTAMP,
	latitude DECIMAL(9, 6),
	longitude DECIMAL(9, 6),
	altitude DECIMAL(5, 2)
);

CREATE TABLE IF NOT EXISTS sensor (
	sensor_id VARCHAR(50) PRIMARY KEY,
	sensebox_id VARCHAR(50),
	title VARCHAR(255),
	unit VARCHAR(50),
	sensor_type VARCHAR(255),
	icon VARCHAR(255),
	FOREIGN KEY (sensebox_id) REFERENCES sensebox(sensebox_id)
);

CREATE TABLE IF NOT EXISTS measurement (
	measurement_id SERIAL PRIMARY KEY,
	sensor_id VARCHAR(50),
	created_at TIMESTAMP,
	value DECIMAL(10, 2),
	FOREIGN KEY (sensor_id) REFERENCES sensor(sensor_id),
	UNIQUE (sensor_id, created_at)
);`

// EnsureSchema creates the three tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return dataAccessErr("ensure schema", err)
	}
	return nil
}
