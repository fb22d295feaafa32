package store

// 用户表文档文件名。
const UsersFile = "users.json"

// LoadUsers 从 path 加载用户表。文件缺失或损坏时返回空表，
// 损坏文件由 LoadDocument 自动备份，启动永远成功。
func LoadUsers(path string) UserTable {
	table := UserTable{}
	if !LoadDocument(path, &table) {
		return UserTable{}
	}
	// 防御空洞记录：补齐缺失的 user_id 键。
	for id, rec := range table {
		if rec == nil {
			delete(table, id)
			continue
		}
		if rec.UserID == "" {
			rec.UserID = id
		}
	}
	return table
}

// SaveUsers 将用户表原子写回 path。
func SaveUsers(path string, table UserTable) error {
	return SaveDocument(path, table)
}
