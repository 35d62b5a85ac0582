package model

// StatsOverview holds the headline counters of the admin dashboard.
type StatsOverview struct {
	TotalUsers           int `db:"total_users" json:"total_users"`
	ActiveUsers30d       int `db:"active_users_30d" json:"active_users_30d"`
	FlaggedUsers         int `db:"flagged_users" json:"flagged_users"`
	TotalBooks           int `db:"total_books" json:"total_books"`
	TotalThreads         int `db:"total_threads" json:"total_threads"`
	TotalComments        int `db:"total_comments" json:"total_comments"`
	TotalReadingProgress int `db:"total_reading_progress" json:"total_reading_progress"`
	CompletedBooks       int `db:"completed_books" json:"completed_books"`
	CurrentlyReading     int `db:"currently_reading" json:"currently_reading"`

	NewUsers7d    int `db:"new_users_7d" json:"-"`
	NewThreads7d  int `db:"new_threads_7d" json:"-"`
	NewComments7d int `db:"new_comments_7d" json:"-"`
}

// RecentActivity counts what was created in the last seven days.
type RecentActivity struct {
	NewUsers    int `json:"new_users_7d"`
	NewThreads  int `json:"new_threads_7d"`
	NewComments int `json:"new_comments_7d"`
}

// ActiveUser ranks a user by threads and comments written.
type ActiveUser struct {
	UserID        int64  `db:"user_id" json:"user_id"`
	Username      string `db:"username" json:"username"`
	ThreadsCount  int    `db:"threads_count" json:"threads_count"`
	CommentsCount int    `db:"comments_count" json:"comments_count"`
	TotalActivity int    `db:"total_activity" json:"total_activity"`
}

// BookActivity ranks a book by the discussion around it.
type BookActivity struct {
	BookID        int64 `db:"book_id" json:"book_id"`
	ThreadsCount  int   `db:"threads_count" json:"threads_count"`
	CommentsCount int   `db:"comments_count" json:"comments_count"`
}

// Statistics is the admin dashboard payload.
type Statistics struct {
	Overview        StatsOverview  `json:"overview"`
	UsersByRole     map[Role]int   `json:"users_by_role"`
	RecentActivity  RecentActivity `json:"recent_activity"`
	MostActiveUsers []ActiveUser   `json:"most_active_users"`
	PopularBooks    []BookActivity `json:"popular_books"`
}
