package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE pipelines (
				id VARCHAR(255) PRIMARY KEY,
				project_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				variables JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_pipelines_project_id ON pipelines(project_id);
			CREATE INDEX idx_pipelines_created_at ON pipelines(created_at);
			CREATE INDEX idx_pipelines_deleted_at ON pipelines(deleted_at);

			CREATE TABLE pipeline_blocks (
				pipeline_id VARCHAR(255) NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				ordinal INT NOT NULL,
				block_type VARCHAR(255) NOT NULL,
				category VARCHAR(50) NOT NULL,
				name VARCHAR(255) NOT NULL,
				icon VARCHAR(255) NOT NULL DEFAULT '',
				config JSONB NOT NULL DEFAULT '{}',
				position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
				position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
				PRIMARY KEY (pipeline_id, id)
			);

			CREATE INDEX idx_pipeline_blocks_type ON pipeline_blocks(block_type);

			CREATE TABLE pipeline_connections (
				pipeline_id VARCHAR(255) NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				ordinal INT NOT NULL,
				source_block_id VARCHAR(255) NOT NULL,
				source_port VARCHAR(50) NOT NULL,
				target_block_id VARCHAR(255) NOT NULL,
				connection_type VARCHAR(50) NOT NULL
					CHECK (connection_type IN ('success', 'failure', 'loop', 'true-path', 'false-path')),
				PRIMARY KEY (pipeline_id, id),
				FOREIGN KEY (pipeline_id, source_block_id) REFERENCES pipeline_blocks(pipeline_id, id) ON DELETE CASCADE,
				FOREIGN KEY (pipeline_id, target_block_id) REFERENCES pipeline_blocks(pipeline_id, id) ON DELETE CASCADE
			);

			CREATE UNIQUE INDEX idx_pipeline_connections_unique
				ON pipeline_connections(pipeline_id, source_block_id, source_port, target_block_id);
		`,
		2: `
			CREATE TABLE project_variables (
				project_id VARCHAR(255) PRIMARY KEY,
				variables JSONB NOT NULL DEFAULT '[]',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	}
}
