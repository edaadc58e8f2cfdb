package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE system_agent_workflow (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				entrypoint_node_id VARCHAR(255),
				is_conversational BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE system_agent_workflow_node (
				id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL REFERENCES system_agent_workflow(id) ON DELETE CASCADE,
				agent_id VARCHAR(255),
				node_type VARCHAR(50) NOT NULL,
				node_name VARCHAR(255) NOT NULL,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_node_workflow_id ON system_agent_workflow_node(workflow_id);

			CREATE TABLE system_agent_workflow_edge (
				id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL REFERENCES system_agent_workflow(id) ON DELETE CASCADE,
				source_node_id VARCHAR(255) NOT NULL,
				target_node_id VARCHAR(255),
				condition_type VARCHAR(50) NOT NULL,
				condition_value VARCHAR(255),
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_edge_workflow_id ON system_agent_workflow_edge(workflow_id);
			CREATE INDEX idx_workflow_edge_source ON system_agent_workflow_edge(workflow_id, source_node_id);
		`,
		2: `
			CREATE TABLE agent_workflow_run (
				run_id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				step_count INT NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				ended_at TIMESTAMP WITH TIME ZONE NOT NULL,
				entries JSONB NOT NULL DEFAULT '[]',
				error TEXT
			);

			CREATE INDEX idx_agent_workflow_run_workflow_id ON agent_workflow_run(workflow_id);
			CREATE INDEX idx_agent_workflow_run_started_at ON agent_workflow_run(started_at);
		`,
	}
}
