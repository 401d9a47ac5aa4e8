package rules

import "regexp"

// ESXi is the built-in rule table covering the nine ESXi log families the
// triage understands. Patterns are evaluated in table order and matching is
// non-exclusive at every level: every ContentPattern is tried against every
// line, every AccessType against every pattern match, and every
// DescriptionHandler against every extracted Description.
var ESXi = Table{
	{
		FilenameStart:   "hostd",
		FilenamePattern: regexp.MustCompile(`^hostd\.(log|\d+.gz|log\..*?)$`),
		ContentPatterns: []ContentPattern{
			{
				Regex: regexp.MustCompile(`(?i)(?P<Timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}.*?Z) (?P<Log_Level>\w+\(.*?\)|\w+) (?P<Event_ID>hostd\[\d{0,9}\])[: ](?P<Event_Type_ID>.*?):\s*(?P<Description>.*)`),
				AccessTypes: []AccessType{
					{
						Name: "Logon",
						Handlers: []DescriptionHandler{
							{Timeline: true, Regex: regexp.MustCompile(`(?i)(SSH access has been.*|Accepted password for user.*|User .*\@\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}.*|SSH session was.*)`)},
						},
					},
					{
						Name: "User_activity",
						Handlers: []DescriptionHandler{
							{Timeline: true, Regex: regexp.MustCompile(`(?i)(Account.* was created|Got HTTP.*|File upload to path.*|File download from path.*|The ESXi command line shell.*|file delete.*|Deletion of file or directory.*|DatastoreBrowserImpl::SearchInt.*dsPath:.*|Create requested for.*|Login password for user.* has been changed|Password was changed for account.*)`)},
							{Timeline: false, Regex: regexp.MustCompile(`(?i)(Account.* was updated on host.*|Sent OK response for.*)`)},
						},
					},
				},
			},
		},
	},
	{
		FilenameStart:   "syslog",
		FilenamePattern: regexp.MustCompile(`^syslog\.(log|\d+.gz|log\..*?)$`),
		ContentPatterns: []ContentPattern{
			{
				Regex: regexp.MustCompile(`(?i)(?P<Timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}.*?Z)( \w+\(.*?\) | )(?P<Logon_Type>sftp-server.*?|DCUI.*?):\s*(?P<Description>.*)`),
				AccessTypes: []AccessType{
					{
						Name: "Logon",
						Handlers: []DescriptionHandler{
							{Timeline: true, Regex: regexp.MustCompile(`User [a-zA-Z0-9].* logged.*`)},
							{Timeline: false, Regex: regexp.MustCompile(`(session.*)`)},
						},
					},
					{
						Name: "User_activity",
						Handlers: []DescriptionHandler{
							{Timeline: true, Regex: regexp.MustCompile(`password changed for.*|Login password for user.*`)},
							{Timeline: false, Regex: regexp.MustCompile(`(?i)(opendir.*|closedir.*|open ".*|close ".*|sent status.*)`)},
						},
					},
				},
			},
		},
	},
	{
		FilenameStart:   "shell",
		FilenamePattern: regexp.MustCompile(`^shell\.(log|\d+.gz|log\..*?)$`),
		ContentPatterns: []ContentPattern{
			{
				Regex: regexp.MustCompile(`(?i)(?P<Timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}.*?Z)( \w+\(.*?\) | )(?P<Logon_Type>[a-zA-Z].*?):\s*(?P<Description>.*)`),
				AccessTypes: []AccessType{
					{
						Name: "Bash_activity",
						Handlers: []DescriptionHandler{
							{Timeline: true, Regex: regexp.MustCompile(`.*`)},
						},
					},
				},
			},
		},
	},
	{
		FilenameStart:   "auth",
		FilenamePattern: regexp.MustCompile(`^auth\.(log|\d+.gz|log\..*?)$`),
		ContentPatterns: []ContentPattern{
			{
				Regex: regexp.MustCompile(`(?i)(?P<Timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}.*?Z)( \w+\(.*?\) | )(?P<Logon_ID>\w+\[\d+\]):(?:.*?:)*\s*(?P<Description>.*)`),
				AccessTypes: []AccessType{
					{
						Name: "Logon",
						Handlers: []DescriptionHandler{
							{Timeline: true, Regex: regexp.MustCompile(`(?i)(user [a-zA-Z0-9].* login.*|Accepted keyboard-interactive.*|Connection from.*|Session opened for.*|Session closed for.*)`)},
							{Timeline: false, Regex: regexp.MustCompile(`(?i)(authentication failure;.*|Connection closed by.*|error \[login.*)`)},
						},
					},
					{
						Name: "User_activity",
						Handlers: []DescriptionHandler{
							{Timeline: true, Regex: regexp.MustCompile(`(?i)(password changed.*)`)},
						},
					},
				},
			},
		},
	},
	{
		FilenameStart:   "vmauthd",
		FilenamePattern: regexp.MustCompile(`^vmauthd\.(log|\d+.gz|log\..*?)$`),
		ContentPatterns: []ContentPattern{
			{
				Regex: regexp.MustCompile(`(?i)(?P<Timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}.*?Z)( \w+\(.*?\) | |: )(?P<Logon_ID>vmauthd.*?):\s*(?P<Description>.*)`),
				AccessTypes: []AccessType{
					{
						Name: "Remote_access",
						Handlers: []DescriptionHandler{
							{Timeline: false, Regex: regexp.MustCompile(`(Connect from remote socket.*)`)},
						},
					},
				},
			},
		},
	},
	{
		FilenameStart:   "vmkernel",
		FilenamePattern: regexp.MustCompile(`^vmkernel\.(log|\d+.gz|log\..*?)$`),
		ContentPatterns: []ContentPattern{
			{
				Regex: regexp.MustCompile(`(?i)\b(?P<Timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}.*?Z)\b.*?(?P<Description>(Accepted connection from.*|Error reading from pending connection:.*))\b`),
				AccessTypes: []AccessType{
					{
						Name: "Remote_access",
						Handlers: []DescriptionHandler{
							{Timeline: false, Regex: regexp.MustCompile(`.*`)},
						},
					},
					{
						Name: "Execution_denied",
						Handlers: []DescriptionHandler{
							{Timeline: true, Regex: regexp.MustCompile(`(.*sh: exec denied.*)`)},
						},
					},
				},
			},
		},
	},
	{
		FilenameStart:   "vobd",
		FilenamePattern: regexp.MustCompile(`^vobd\.(log|\d+.gz|log\..*?)$`),
		ContentPatterns: []ContentPattern{
			{
				Regex: regexp.MustCompile(`(?i)(?P<Timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}.*?Z)( \w+\(.*?\) vobd\[.*?\]:  |: )(?P<Type>\[.*?\]) (?P<ID>\d+.*?):\s*(?P<Description_Type>\[.*?\]) (?P<Description>.*)`),
				AccessTypes: []AccessType{
					{
						Name: "Logon",
						Handlers: []DescriptionHandler{
							{Timeline: true, Regex: regexp.MustCompile(`(?i)(SSH session was.*|Authentication of user.* has.*)`)},
						},
					},
					{
						Name: "User_activity",
						Handlers: []DescriptionHandler{
							{Timeline: true, Regex: regexp.MustCompile(`(?i)(The ESX command line shell has been.*|Administrator access to the host has been.*|Login password for user.*|SSH access has been.*)`)},
						},
					},
				},
			},
		},
	},
	{
		FilenameStart:   "esxcli",
		FilenamePattern: regexp.MustCompile(`^esxcli\.(log|\d+.gz|log\..*?)$`),
		ContentPatterns: []ContentPattern{
			{
				Regex: regexp.MustCompile(`(?i)(?P<Timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}.*?Z) (?P<Log_Level>\w+\(.*?\)|\w+|\w+\(.*?\)\[.*?\]) (esxcli\[.*?\]: |esxcli\[.*?\] |esxcli\[.*?\]:\s\s)(?P<Type>[^:]+):\s*(?P<Description>.*)`),
				AccessTypes: []AccessType{
					{
						Name: "User_activity",
						Handlers: []DescriptionHandler{
							{Timeline: true, Regex: regexp.MustCompile(`.*`)},
						},
					},
				},
			},
		},
	},
	{
		FilenameStart:   "rhttpproxy",
		FilenamePattern: regexp.MustCompile(`^rhttpproxy\.(log|\d+.gz|log\..*?)$`),
		ContentPatterns: []ContentPattern{
			{
				Regex: regexp.MustCompile(`(?i)(?P<Timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}.*?Z) (?P<Log_Level>\w+) (?P<Log_ID>rhttpproxy\[\d+\]) (?P<Description_Type>\[.*?\]) (?P<Description>.*)`),
				AccessTypes: []AccessType{
					{
						Name: "Remote_access",
						Handlers: []DescriptionHandler{
							{Timeline: false, Regex: regexp.MustCompile(`(New proxy client.*)`)},
						},
					},
				},
			},
		},
	},
}
