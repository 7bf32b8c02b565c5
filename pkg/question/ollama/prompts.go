package ollama

import (
	"fmt"

	"github.com/admmpy/aide/pkg/question"
)

const systemPrompt = `You are a SQL question generator for PostgreSQL 14.
Output ONLY valid JSON matching the exact schema provided.
No explanations, no markdown formatting outside the JSON, no extra text.
Ensure all SQL is valid PostgreSQL 14 syntax.`

// Few-shot examples keyed by difficulty keep the model's output shape stable.
var fewShots = map[question.Difficulty]string{
	question.Easy: `{
  "title": "High-Value Orders",
  "description": "Find all orders with a total amount greater than 500, sorted by amount descending.",
  "tables": [{
    "name": "orders",
    "columns": ["order_id SERIAL PRIMARY KEY", "customer_id INT", "amount DECIMAL(10,2)", "created_at DATE"],
    "sample_data": [[1, 101, 250.00, "2024-01-15"], [2, 102, 750.50, "2024-01-16"], [3, 101, 125.00, "2024-01-17"], [4, 103, 890.00, "2024-01-18"], [5, 102, 50.00, "2024-01-19"]]
  }],
  "setup_sql": "CREATE TABLE orders (order_id SERIAL PRIMARY KEY, customer_id INT, amount DECIMAL(10,2), created_at DATE); INSERT INTO orders (customer_id, amount, created_at) VALUES (101, 250.00, '2024-01-15'), (102, 750.50, '2024-01-16'), (101, 125.00, '2024-01-17'), (103, 890.00, '2024-01-18'), (102, 50.00, '2024-01-19');",
  "expected_query": "SELECT * FROM orders WHERE amount > 500 ORDER BY amount DESC;",
  "expected_columns": ["order_id", "customer_id", "amount", "created_at"],
  "hints": ["Filter rows based on a numeric condition", "Use WHERE with a comparison operator"]
}`,

	question.Medium: `{
  "title": "Customer Order Totals",
  "description": "Find each customer's name and their total order amount. Only include customers who have spent more than 1000 in total. Sort by total spent descending.",
  "tables": [
    {"name": "customers", "columns": ["customer_id SERIAL PRIMARY KEY", "name VARCHAR(100)", "email VARCHAR(255)"], "sample_data": [[1, "Alice Johnson", "alice@email.com"], [2, "Bob Smith", "bob@email.com"], [3, "Carol White", "carol@email.com"]]},
    {"name": "orders", "columns": ["order_id SERIAL PRIMARY KEY", "customer_id INT REFERENCES customers(customer_id)", "amount DECIMAL(10,2)", "order_date DATE"], "sample_data": [[1, 1, 500.00, "2024-01-10"], [2, 1, 750.00, "2024-01-15"], [3, 2, 200.00, "2024-01-12"], [4, 3, 1500.00, "2024-01-20"]]}
  ],
  "setup_sql": "CREATE TABLE customers (customer_id SERIAL PRIMARY KEY, name VARCHAR(100), email VARCHAR(255)); CREATE TABLE orders (order_id SERIAL PRIMARY KEY, customer_id INT, amount DECIMAL(10,2), order_date DATE); INSERT INTO customers (name, email) VALUES ('Alice Johnson', 'alice@email.com'), ('Bob Smith', 'bob@email.com'), ('Carol White', 'carol@email.com'); INSERT INTO orders (customer_id, amount, order_date) VALUES (1, 500.00, '2024-01-10'), (1, 750.00, '2024-01-15'), (2, 200.00, '2024-01-12'), (3, 1500.00, '2024-01-20');",
  "expected_query": "SELECT c.name, SUM(o.amount) AS total_spent FROM customers c JOIN orders o ON c.customer_id = o.customer_id GROUP BY c.customer_id, c.name HAVING SUM(o.amount) > 1000 ORDER BY total_spent DESC;",
  "expected_columns": ["name", "total_spent"],
  "hints": ["You need to combine data from two tables", "Use GROUP BY with an aggregate function", "HAVING filters after aggregation"]
}`,

	question.Hard: `{
  "title": "Running Revenue by Month",
  "description": "Calculate each month's revenue and the cumulative running total of revenue. Show the month (as date), monthly revenue, and running total. Order by month ascending.",
  "tables": [{
    "name": "sales",
    "columns": ["sale_id SERIAL PRIMARY KEY", "amount DECIMAL(10,2)", "sale_date DATE"],
    "sample_data": [[1, 1200.00, "2024-01-05"], [2, 800.00, "2024-01-20"], [3, 1500.00, "2024-02-10"], [4, 600.00, "2024-02-25"], [5, 2000.00, "2024-03-08"]]
  }],
  "setup_sql": "CREATE TABLE sales (sale_id SERIAL PRIMARY KEY, amount DECIMAL(10,2), sale_date DATE); INSERT INTO sales (amount, sale_date) VALUES (1200.00, '2024-01-05'), (800.00, '2024-01-20'), (1500.00, '2024-02-10'), (600.00, '2024-02-25'), (2000.00, '2024-03-08');",
  "expected_query": "SELECT DATE_TRUNC('month', sale_date)::DATE AS month, SUM(amount) AS monthly_revenue, SUM(SUM(amount)) OVER (ORDER BY DATE_TRUNC('month', sale_date)) AS running_total FROM sales GROUP BY DATE_TRUNC('month', sale_date) ORDER BY month;",
  "expected_columns": ["month", "monthly_revenue", "running_total"],
  "hints": ["Group sales by month using DATE_TRUNC", "Window functions can run over aggregated results", "SUM(...) OVER (ORDER BY ...) produces a running total"]
}`,
}

func buildPrompt(difficulty question.Difficulty, domain string, maxTables, maxRows int) string {
	shot, ok := fewShots[difficulty]
	if !ok {
		shot = fewShots[question.Medium]
	}
	return fmt.Sprintf(`Generate a %s SQL practice question in the %s domain.

Output JSON with this exact structure:
{
  "title": "Short descriptive title",
  "description": "What the user must find, in plain language",
  "tables": [{"name": "...", "columns": ["col_name TYPE ...", ...], "sample_data": [[...], ...]}],
  "setup_sql": "CREATE TABLE ...; INSERT INTO ... VALUES ...;",
  "expected_query": "SELECT ...",
  "expected_columns": ["col1", "col2"],
  "hints": ["Hint 1 (vague)", "Hint 2 (more specific)", "Hint 3 (nearly gives it away)"]
}

CONSTRAINTS:
- Tables: 1-%d tables, max %d total rows across all tables
- Column names: Use snake_case (user_id, created_at, total_amount)
- Data: Use realistic values (real names, plausible dates, sensible amounts). NO placeholder text like "test", "example", "foo".
- expected_query: Must be deterministic. Always include ORDER BY if results could vary.
- PostgreSQL 14 syntax only. Use appropriate types (SERIAL, VARCHAR, DECIMAL, DATE, TIMESTAMP, BOOLEAN).
- Ensure all foreign key references are valid in the sample data.

EXAMPLE for %s difficulty:
%s

Generate a DIFFERENT question in the %s domain. Be creative with the scenario.`,
		difficulty, domain, maxTables, maxRows, difficulty, shot, domain)
}

func buildCustomPrompt(userPrompt string, maxTables, maxRows int) string {
	return fmt.Sprintf(`Generate a SQL practice question based on this request:

%q

Output JSON with this exact structure:
{
  "title": "Short descriptive title",
  "description": "What the user must find, in plain language",
  "tables": [{"name": "...", "columns": ["col_name TYPE ...", ...], "sample_data": [[...], ...]}],
  "setup_sql": "CREATE TABLE ...; INSERT INTO ... VALUES ...;",
  "expected_query": "SELECT ...",
  "expected_columns": ["col1", "col2"],
  "hints": ["Hint 1 (vague)", "Hint 2 (more specific)", "Hint 3 (nearly gives it away)"]
}

CONSTRAINTS:
- Tables: 1-%d tables, max %d total rows across all tables
- Column names: Use snake_case (user_id, created_at, total_amount)
- Data: Use realistic values. NO placeholder text like "test", "example", "foo".
- expected_query: Must be deterministic. Always include ORDER BY if results could vary.
- PostgreSQL 14 syntax only.

EXAMPLE:
%s`,
		userPrompt, maxTables, maxRows, fewShots[question.Medium])
}

func retryPrompt(prompt, lastError string) string {
	return fmt.Sprintf(`The previous attempt had an error: %s

Please fix the issue and regenerate. Remember:
- Output ONLY valid JSON
- Ensure all SQL statements are valid PostgreSQL 14
- Make sure expected_query actually works with the setup_sql schema

%s`, lastError, prompt)
}
